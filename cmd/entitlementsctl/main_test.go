package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func auditArgs(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	return []string{
		"--config", filepath.Join(dir, "missing.toml"),
		"--audit-dsn", "file:" + filepath.Join(dir, "audit.db") + "?_foreign_keys=on",
	}
}

func TestRecordsList_EmptyAuditDatabase(t *testing.T) {
	args := append(auditArgs(t), "records", "list")
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("records list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "LEVEL") || !strings.Contains(out, "MESSAGE") {
		t.Fatalf("expected table header, got %q", out)
	}
}

func TestRecordsPrune_EmptyAuditDatabase(t *testing.T) {
	args := append(auditArgs(t), "records", "prune", "--row-cap", "10")
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("records prune: %v\n%s", err, out)
	}
	if !strings.Contains(out, "deleted 0 record(s)") {
		t.Fatalf("unexpected prune output %q", out)
	}
}

func TestApply_RequiresReadableStateFile(t *testing.T) {
	args := append(auditArgs(t), "apply", "-f", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := runCLI(t, args...); err == nil {
		t.Fatalf("expected missing state file error")
	}
}

func TestRoot_RejectsUnknownOutputFormat(t *testing.T) {
	args := append(auditArgs(t), "-o", "yaml", "records", "list")
	_, err := runCLI(t, args...)
	if err == nil || !strings.Contains(err.Error(), "unsupported output format") {
		t.Fatalf("expected output format error, got %v", err)
	}
}

func TestAgreementCommands_RequireFlags(t *testing.T) {
	for _, name := range []string{"remove-admins", "delete-permission-groups", "clear-permissions"} {
		args := append(auditArgs(t), name)
		if _, err := runCLI(t, args...); err == nil {
			t.Fatalf("%s: expected required flag error", name)
		}
	}
}
