package config

import "github.com/spf13/pflag"

// BindFlags registers CLI flags that override a loaded Config, in the
// teacher's main.go style of flag wiring (replacing the bare flag
// package with pflag, per SPEC_FULL.md's ambient stack).
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.IngestSocket, "ingest-sock", cfg.IngestSocket, "path to the ingest datagram socket")
	fs.StringVar(&cfg.EgressSocket, "egress-sock", cfg.EgressSocket, "path to the egress stream socket")
	fs.StringVar(&cfg.ControlSocket, "control-sock", cfg.ControlSocket, "path to the control stream socket")
	fs.IntVar(&cfg.MaxSubscriptions, "max-subscriptions", cfg.MaxSubscriptions, "maximum concurrent egress subscriptions")
	fs.Uint32Var(&cfg.SecurityUIDCeiling, "security-uid-ceiling", cfg.SecurityUIDCeiling, "uids below this value may write the security partition")
	fs.StringSliceVar(&cfg.TagMapPaths, "tag-map", cfg.TagMapPaths, "event-tag dictionary file(s), in precedence order")
	fs.BoolVar(&cfg.EnableKernelLog, "enable-kernel-log", cfg.EnableKernelLog, "tail /dev/kmsg into the kernel partition")
	fs.BoolVar(&cfg.EnableAuditLog, "enable-audit-log", cfg.EnableAuditLog, "forward audit denials into the security partition")
	fs.BoolVar(&cfg.EnableTrusty, "enable-trusty", cfg.EnableTrusty, "wire the inert TEE sidecar collaborator")
}
