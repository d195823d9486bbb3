package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	tests := []struct {
		name   string
		check  func(*Config) bool
		expect string
	}{
		{
			name:   "default host is 0.0.0.0",
			check:  func(c *Config) bool { return c.Host == "0.0.0.0" },
			expect: "0.0.0.0",
		},
		{
			name:   "default port is 8080",
			check:  func(c *Config) bool { return c.Port == 8080 },
			expect: "8080",
		},
		{
			name:   "default S2 level is 13 on both ends",
			check:  func(c *Config) bool { return c.S2MinLevel == 13 && c.S2MaxLevel == 13 },
			expect: "13",
		},
		{
			name:   "default store backend is memory",
			check:  func(c *Config) bool { return c.StoreBackend == "memory" },
			expect: "memory",
		},
		{
			name:   "default log level is info",
			check:  func(c *Config) bool { return c.LogLevel == "info" },
			expect: "info",
		},
		{
			name:   "default log format is json",
			check:  func(c *Config) bool { return c.LogFormat == "json" },
			expect: "json",
		},
		{
			name:   "listen addr format",
			check:  func(c *Config) bool { return c.ListenAddr() == "0.0.0.0:8080" },
			expect: "0.0.0.0:8080",
		},
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(cfg) {
				t.Errorf("expected %s", tt.expect)
			}
		})
	}
}

func TestResolvePublicKeyPEM(t *testing.T) {
	cfg := &Config{PublicKeyPEM: "inline-pem"}
	pem, err := cfg.ResolvePublicKeyPEM(nil)
	if err != nil {
		t.Fatalf("ResolvePublicKeyPEM() error = %v", err)
	}
	if pem != "inline-pem" {
		t.Errorf("pem = %q, want inline-pem", pem)
	}

	cfg = &Config{}
	pem, err = cfg.ResolvePublicKeyPEM(nil)
	if err != nil {
		t.Fatalf("ResolvePublicKeyPEM() error = %v", err)
	}
	if pem != "" {
		t.Errorf("pem = %q, want empty when unconfigured", pem)
	}

	cfg = &Config{PublicKeyPath: "/etc/dss/key.pem"}
	pem, err = cfg.ResolvePublicKeyPEM(func(path string) ([]byte, error) {
		if path != "/etc/dss/key.pem" {
			t.Errorf("readFile path = %q, want /etc/dss/key.pem", path)
		}
		return []byte("file-pem"), nil
	})
	if err != nil {
		t.Fatalf("ResolvePublicKeyPEM() error = %v", err)
	}
	if pem != "file-pem" {
		t.Errorf("pem = %q, want file-pem", pem)
	}
}
