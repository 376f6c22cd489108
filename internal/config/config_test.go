package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IngestSocket != Default().IngestSocket {
		t.Errorf("expected default ingest socket, got %q", cfg.IngestSocket)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logd.yaml")
	content := "ingest_socket: /tmp/custom-logdw\nmax_subscriptions: 16\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IngestSocket != "/tmp/custom-logdw" {
		t.Errorf("IngestSocket = %q, want /tmp/custom-logdw", cfg.IngestSocket)
	}
	if cfg.MaxSubscriptions != 16 {
		t.Errorf("MaxSubscriptions = %d, want 16", cfg.MaxSubscriptions)
	}
	// Fields absent from the file should keep their defaults.
	if cfg.EgressSocket != Default().EgressSocket {
		t.Errorf("expected default egress socket to survive partial override, got %q", cfg.EgressSocket)
	}
}

func TestQuotaTableParsesKnownPartitions(t *testing.T) {
	cfg := Default()
	table := cfg.QuotaTable()
	if table[logrecord.Main] != 1024*1024 {
		t.Errorf("main quota = %d, want %d", table[logrecord.Main], 1024*1024)
	}
	if table[logrecord.Security] != 256*1024 {
		t.Errorf("security quota = %d, want %d", table[logrecord.Security], 256*1024)
	}
	if len(table) != logrecord.NumPartitions {
		t.Errorf("expected %d parsed partitions, got %d", logrecord.NumPartitions, len(table))
	}
}

func TestQuotaTableIgnoresUnknownPartitionNames(t *testing.T) {
	cfg := Default()
	cfg.Quotas["bogus"] = 12345
	table := cfg.QuotaTable()
	if len(table) != logrecord.NumPartitions {
		t.Errorf("expected unknown partition name to be dropped, got %d entries", len(table))
	}
}
