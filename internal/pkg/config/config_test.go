package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
service:
  name: flashsale-service
  port: 8086
  logLevel: debug
infra:
  mysql:
    addr: localhost:3306
    user: eshop
    password: secret
    database: eshop_flashsales
  redis:
    addr: localhost:6379
    db: 1
  kafka:
    brokers: ["localhost:9092"]
    dlqTopic: eshop.dlq
    groupId: flashsale-service
  zookeeper:
    servers: ["localhost:2181"]
flashSale:
  lockTimeout: 5s
  outbox:
    maxRetries: 3
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Service.Name != "flashsale-service" {
		t.Errorf("expected service name flashsale-service, got %s", cfg.Service.Name)
	}
	if cfg.Service.Port != 8086 {
		t.Errorf("expected port 8086, got %d", cfg.Service.Port)
	}
	if got := cfg.FlashSale.LockTimeout.Std(); got != 5*time.Second {
		t.Errorf("expected lockTimeout 5s, got %v", got)
	}
	if got := cfg.FlashSale.Outbox.MaxRetries; got != 3 {
		t.Errorf("expected maxRetries 3, got %d", got)
	}
	if len(cfg.Infra.Kafka.Brokers) != 1 || cfg.Infra.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("unexpected kafka brokers: %v", cfg.Infra.Kafka.Brokers)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "service:\n  name: x\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Service.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Service.LogLevel)
	}
	if cfg.FlashSale.LockTimeout.Std() != 3*time.Second {
		t.Errorf("expected default lock timeout 3s, got %v", cfg.FlashSale.LockTimeout)
	}
	if cfg.FlashSale.PreOrderTTL.Std() != 10*time.Minute {
		t.Errorf("expected default preorder ttl 10m, got %v", cfg.FlashSale.PreOrderTTL)
	}
	if cfg.FlashSale.Outbox.PollInterval.Std() != 2*time.Second {
		t.Errorf("expected default poll interval 2s, got %v", cfg.FlashSale.Outbox.PollInterval)
	}
	if cfg.FlashSale.Outbox.BatchSize != 32 {
		t.Errorf("expected default batch size 32, got %d", cfg.FlashSale.Outbox.BatchSize)
	}
}

func TestLoad_FileMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMySQLDSN(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dsn := cfg.MySQLDSN()
	for _, want := range []string{"eshop:secret@tcp(localhost:3306)/eshop_flashsales", "parseTime=true"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %q", dsn, want)
		}
	}
}
