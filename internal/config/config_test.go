package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
host: db.internal
port: 3306
user: app
password: secret
database: appdb
charset_name: utf8mb4
init_commands:
  - "SET time_zone = '+00:00'"
connect_timeout: 5s
`
	path := writeTemp(t, yaml)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if f.Host != "db.internal" {
		t.Errorf("expected host db.internal, got %s", f.Host)
	}
	if f.Port != 3306 {
		t.Errorf("expected port 3306, got %d", f.Port)
	}
	if len(f.InitCommands) != 1 || f.InitCommands[0] != "SET time_zone = '+00:00'" {
		t.Errorf("unexpected init commands: %v", f.InitCommands)
	}
	if f.ConnectTimeout != 5*time.Second {
		t.Errorf("expected connect timeout 5s, got %v", f.ConnectTimeout)
	}
}

func TestLoadEnvSubstitution(t *testing.T) {
	os.Setenv("TEST_DB_PASSWORD", "secret123")
	defer os.Unsetenv("TEST_DB_PASSWORD")

	yaml := `
host: localhost
port: 3306
user: app
password: ${TEST_DB_PASSWORD}
`
	path := writeTemp(t, yaml)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if f.Password != "secret123" {
		t.Errorf("expected password secret123, got %s", f.Password)
	}
}

func TestLoadValidationErrorBothHostAndSocket(t *testing.T) {
	yaml := `
host: localhost
socket: /tmp/mysql.sock
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Error("expected error when both host and socket are set")
	}
}

func TestLoadValidationErrorTLSCertWithoutKey(t *testing.T) {
	yaml := `
host: localhost
tls:
  enabled: true
  cert: /etc/ssl/client-cert.pem
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Error("expected error when tls cert is set without a key")
	}
}

func TestApplyDefaults(t *testing.T) {
	yaml := `
socket: /tmp/mysql.sock
`
	path := writeTemp(t, yaml)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if f.CharsetName != "utf8mb4" {
		t.Errorf("expected default charset utf8mb4, got %s", f.CharsetName)
	}
	if f.ConnectTimeout != 10*time.Second {
		t.Errorf("expected default connect timeout 10s, got %v", f.ConnectTimeout)
	}
	if f.NetBufferSize != 16*1024 {
		t.Errorf("expected default net buffer size 16KiB, got %d", f.NetBufferSize)
	}
}

func TestApplyDefaultsFillsHostWhenNeitherSet(t *testing.T) {
	path := writeTemp(t, `user: app`)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.Host != "127.0.0.1" {
		t.Errorf("expected default host 127.0.0.1, got %s", f.Host)
	}
	if f.Port != 3306 {
		t.Errorf("expected default port 3306, got %d", f.Port)
	}
}

func TestRedacted(t *testing.T) {
	f := File{Password: "secret"}
	r := f.Redacted()
	if r.Password != "***REDACTED***" {
		t.Errorf("expected password redacted, got %s", r.Password)
	}
	if f.Password != "secret" {
		t.Error("Redacted should not mutate the receiver")
	}
}

func TestCfgFileCfgSectionAreNoOps(t *testing.T) {
	yaml := `
host: localhost
cfg_file: /etc/my.cnf
cfg_section: client
`
	path := writeTemp(t, yaml)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.CfgFile != "/etc/my.cnf" || f.CfgSection != "client" {
		t.Error("cfg_file/cfg_section should still parse even though they're not honored")
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}
