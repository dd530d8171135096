package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fluxorio/filerepo/pkg/config"
	"github.com/fluxorio/filerepo/pkg/filerepo"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out bytes.Buffer
	err := run(ctx, args, &out)
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("run %v: %v", args, err)
	}
	return out
}

func TestCLI_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.dat")
	base := []string{"-path", path, "-record-size", "4"}
	cmd := func(args ...string) []string { return append(append([]string{}, base...), args...) }

	if out := mustRun(t, cmd("append", "61616161", "62626262", "63636363")...); out != "3\n" {
		t.Fatalf("append printed %q", out)
	}
	if out := mustRun(t, cmd("count")...); out != "3\n" {
		t.Fatalf("count printed %q", out)
	}
	if out := mustRun(t, cmd("range")...); out != "0 2\n" {
		t.Fatalf("range printed %q", out)
	}
	if out := mustRun(t, cmd("get", "1")...); out != "1 62626262\n" {
		t.Fatalf("get printed %q", out)
	}
	if out := mustRun(t, cmd("scan", "1")...); out != "1 62626262\n2 63636363\n" {
		t.Fatalf("scan printed %q", out)
	}
	if out := mustRun(t, cmd("scan", "0", "1")...); out != "0 61616161\n1 62626262\n" {
		t.Fatalf("scan range printed %q", out)
	}
	if out := mustRun(t, cmd("search", "63636363", "0", "2")...); out != "2 63636363\n" {
		t.Fatalf("search printed %q", out)
	}

	mustRun(t, cmd("truncate", "1")...)
	if out := mustRun(t, cmd("count")...); out != "1\n" {
		t.Fatalf("count after truncate printed %q", out)
	}
	if _, err := runCLI(t, cmd("get", "1")...); !errors.Is(err, filerepo.ErrSeek) {
		t.Fatalf("get past end = %v, want ErrSeek", err)
	}
}

func TestCLI_SearchNeighbours(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sorted.dat")
	if err := os.WriteFile(path, []byte("aabbddee"), 0o600); err != nil {
		t.Fatal(err)
	}
	out := mustRun(t, "-path", path, "-record-size", "2", "search", "6363", "0", "3")
	want := "no exact match, neighbours:\n1 6262\n2 6464\n"
	if out != want {
		t.Fatalf("search printed %q, want %q", out, want)
	}
}

func TestCLI_Offset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offset.dat")
	base := []string{"-path", path, "-record-size", "2", "-offset", "100"}
	mustRun(t, append(base, "append", "0102", "0304")...)
	if out := mustRun(t, append(base, "get", "101")...); out != "101 0304\n" {
		t.Fatalf("get printed %q", out)
	}
	if _, err := runCLI(t, append(base, "get", "99")...); !errors.Is(err, filerepo.ErrSeek) {
		t.Fatalf("get below offset = %v", err)
	}
}

func TestCLI_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "repo.yaml")
	if out := mustRun(t, "defaults", cfgPath); out != "" {
		t.Fatalf("defaults printed %q", out)
	}
	opts, err := config.LoadWithEnv(cfgPath, "UNUSED_PREFIX")
	if err == nil {
		t.Fatalf("defaults without a store path should not validate: %+v", opts)
	}

	data := filepath.Join(dir, "from-config.dat")
	if err := os.WriteFile(cfgPath, []byte("store:\n  path: "+data+"\n  record_size: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	mustRun(t, "-config", cfgPath, "append", "010203")
	if out := mustRun(t, "-config", cfgPath, "get", "0"); out != "0 010203\n" {
		t.Fatalf("get printed %q", out)
	}
}

func TestCLI_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.dat")
	if err := os.WriteFile(path, []byte("abcd"), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var out bytes.Buffer
	if err := run(ctx, []string{"-path", path, "-record-size", "2", "watch", "5ms"}, &out); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out.String()), "\n"); len(lines) != 1 || !strings.HasSuffix(lines[0], " 2") {
		t.Fatalf("watch printed %q", out.String())
	}
}

func TestCLI_Usage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.dat")
	tests := [][]string{
		{},
		{"-path", path, "bogus"},
		{"-path", path, "get"},
		{"-path", path, "scan", "1", "2", "3"},
		{"-path", path, "append"},
		{"defaults"},
	}
	for _, args := range tests {
		if _, err := runCLI(t, args...); !errors.Is(err, errUsage) {
			t.Errorf("run %v = %v, want usage error", args, err)
		}
	}
	if _, err := runCLI(t, "-path", path, "get", "x"); err == nil || errors.Is(err, errUsage) {
		t.Errorf("non-numeric id = %v", err)
	}
	if _, err := runCLI(t, "get", "0"); err == nil {
		t.Error("missing store path should fail validation")
	}
}
