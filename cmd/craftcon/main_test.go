package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestStartWithRetry(t *testing.T) {
	calls := 0
	err := startWithRetry(context.Background(), "test", func(context.Context) error {
		calls++
		return nil
	}, 3)
	if err != nil || calls != 1 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = startWithRetry(ctx, "test", func(context.Context) error {
		return errors.New("bind")
	}, 3)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled retry = %v", err)
	}
}

func TestUniqueDirs(t *testing.T) {
	got := uniqueDirs(".", "./", "config")
	if len(got) != 2 || got[0] != "." || got[1] != "config" {
		t.Fatalf("uniqueDirs = %v", got)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), Version) {
		t.Fatalf("output = %q", out.String())
	}
}
