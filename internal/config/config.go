// Package config holds the daemon's YAML-backed configuration,
// grounded in bureau-foundation's lib/config pattern of a plain struct
// loaded with gopkg.in/yaml.v3 and overridable by CLI flags.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
)

// Config is the daemon's full configuration surface.
type Config struct {
	IngestSocket  string `yaml:"ingest_socket"`
	EgressSocket  string `yaml:"egress_socket"`
	ControlSocket string `yaml:"control_socket"`

	Quotas map[string]int64 `yaml:"quotas"`

	MaxSubscriptions int `yaml:"max_subscriptions"`

	TagMapPaths []string `yaml:"tag_map_paths"`

	SecurityUIDCeiling uint32 `yaml:"security_uid_ceiling"`

	EnableKernelLog bool `yaml:"enable_kernel_log"`
	EnableAuditLog  bool `yaml:"enable_audit_log"`
	EnableTrusty    bool `yaml:"enable_trusty"`
}

// Default returns the configuration used when no file overrides it,
// implementing Open Question decision #1 (per-partition default
// quotas).
func Default() Config {
	return Config{
		IngestSocket:  "/dev/socket/logdw",
		EgressSocket:  "/dev/socket/logdr",
		ControlSocket: "/dev/socket/logd",
		Quotas: map[string]int64{
			"main":     1024 * 1024,
			"radio":    256 * 1024,
			"events":   256 * 1024,
			"system":   256 * 1024,
			"crash":    512 * 1024,
			"stats":    256 * 1024,
			"security": 256 * 1024,
			"kernel":   256 * 1024,
		},
		MaxSubscriptions:   1024,
		TagMapPaths:        []string{"/system/etc/event-log-tags", "/etc/logd/event-log-tags"},
		SecurityUIDCeiling: 2000,
	}
}

// Load reads a YAML config file at path, falling back silently to the
// defaults for any field it does not set.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// QuotaTable converts the string-keyed YAML quotas into the
// partition-keyed table store.Quotas expects.
func (c Config) QuotaTable() map[logrecord.Partition]int64 {
	out := make(map[logrecord.Partition]int64, len(c.Quotas))
	for name, bytes := range c.Quotas {
		if p, ok := logrecord.ParsePartition(name); ok {
			out[p] = bytes
		}
	}
	return out
}
