package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSecret = "test-secret-for-development-only-0123456789"

// writeConfig writes a minimal config to a temp dir and points
// GRAYLOGIC_CONFIG at it.
func writeConfig(t *testing.T, dbPath string) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")

	content := fmt.Sprintf(`
database:
  path: %q
  wal_mode: true
  busy_timeout: 5

logging:
  level: warn
  format: text
  output: stdout

security:
  jwt:
    secret: %q
`, dbPath, testSecret)

	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GRAYLOGIC_CONFIG", configPath)
}

func count(report, state string) int {
	n := 0
	for _, line := range strings.Split(report, "\n") {
		if strings.HasPrefix(line, state+" ") {
			n++
		}
	}
	return n
}

func TestRun_UpDownStatus(t *testing.T) {
	writeConfig(t, filepath.Join(t.TempDir(), "mfa.db"))
	ctx := context.Background()

	var out bytes.Buffer
	if err := run(ctx, []string{"status"}, &out); err != nil {
		t.Fatalf("status error = %v", err)
	}
	total := count(out.String(), "pending")
	if total == 0 || count(out.String(), "applied") != 0 {
		t.Fatalf("fresh status:\n%s", out.String())
	}

	out.Reset()
	if err := run(ctx, []string{"up"}, &out); err != nil {
		t.Fatalf("up error = %v", err)
	}
	if got := count(out.String(), "applied"); got != total {
		t.Errorf("applied after up = %d, want %d\n%s", got, total, out.String())
	}

	out.Reset()
	if err := run(ctx, []string{"down"}, &out); err != nil {
		t.Fatalf("down error = %v", err)
	}
	if count(out.String(), "applied") != total-1 || count(out.String(), "pending") != 1 {
		t.Errorf("status after down:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "audit_logs") {
		t.Errorf("latest migration not pending after down:\n%s", out.String())
	}
}

func TestRun_Usage(t *testing.T) {
	tests := [][]string{nil, {"sideways"}, {"up", "extra"}}
	for _, args := range tests {
		if err := run(context.Background(), args, &bytes.Buffer{}); !errors.Is(err, errUsage) {
			t.Errorf("run(%v) error = %v, want errUsage", args, err)
		}
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if err := run(context.Background(), []string{"status"}, &bytes.Buffer{}); err == nil {
		t.Error("run() with missing config returned nil error")
	}
}
