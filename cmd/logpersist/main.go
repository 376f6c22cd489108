// Command logpersist is the administrative CLI wrapper described in
// spec.md §6: it talks to ControlEndpoint over the control socket and
// does not implement rotation or storage itself.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"

	"github.com/spf13/pflag"
)

func main() {
	socketPath := pflag.String("control-sock", "/dev/socket/logd", "path to the control stream socket")
	partition := pflag.String("buffer", "main", "partition to operate on")
	size := pflag.Int64("size", 0, "accepted for parity with the platform tool; this CLI does not change quotas")
	clear := pflag.Bool("clear", false, "clear the partition after dumping")
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: logpersist [flags] <cat|start|stop>")
		os.Exit(1)
	}

	conn, err := net.Dial("unix", *socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logpersist: connecting to control socket: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	r := bufio.NewReader(conn)

	if *size > 0 {
		fmt.Fprintf(os.Stderr, "logpersist: -size is accepted for parity with the platform tool but is ignored: this CLI does not change quotas\n")
	}

	switch args[0] {
	case "cat":
		out, err := os.CreateTemp("", "logpersist-*.nano")
		if err != nil {
			fmt.Fprintf(os.Stderr, "logpersist: %v\n", err)
			os.Exit(1)
		}
		reply := mustSend(conn, r, fmt.Sprintf("dumpState %s %s\n", *partition, out.Name()))
		fmt.Println(reply)
		fmt.Println("snapshot written to", out.Name())
		if *clear {
			mustSend(conn, r, fmt.Sprintf("clear %s\n", *partition))
		}
	case "start":
		reply := mustSend(conn, r, fmt.Sprintf("getStatistics %s\n", *partition))
		fmt.Print(reply)
	case "stop":
		reply := mustSend(conn, r, fmt.Sprintf("clear %s\n", *partition))
		fmt.Print(reply)
	default:
		fmt.Fprintf(os.Stderr, "logpersist: unknown subcommand %q\n", args[0])
		os.Exit(1)
	}
}

func mustSend(conn net.Conn, r *bufio.Reader, cmd string) string {
	if _, err := conn.Write([]byte(cmd)); err != nil {
		fmt.Fprintf(os.Stderr, "logpersist: writing command: %v\n", err)
		os.Exit(1)
	}
	line, err := r.ReadString('\n')
	if err != nil {
		fmt.Fprintf(os.Stderr, "logpersist: reading reply: %v\n", err)
		os.Exit(1)
	}
	return line
}
