package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/teilomillet/parley/server/mocks"
	"github.com/teilomillet/parley/server/processing"
	"github.com/teilomillet/parley/server/provider"
	"go.uber.org/zap"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	var got []string
	for _, c := range cmd.Commands() {
		got = append(got, c.Name())
	}
	want := []string{"ask", "serve", "validate", "version"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("subcommands mismatch (-want +got):\n%s", diff)
	}
}

func TestRootCmd_FlagDefaults(t *testing.T) {
	cmd := newRootCmd()

	configFlag := cmd.PersistentFlags().Lookup("config")
	if configFlag == nil {
		t.Fatalf("config flag not found")
	}
	if diff := cmp.Diff("", configFlag.DefValue); diff != "" {
		t.Fatalf("config default mismatch (-want +got):\n%s", diff)
	}

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	if envFlag == nil {
		t.Fatalf("env-file flag not found")
	}
	if diff := cmp.Diff("[.env]", envFlag.DefValue); diff != "" {
		t.Fatalf("env-file default mismatch (-want +got):\n%s", diff)
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if diff := cmp.Diff("parley "+Version+"\n", out.String()); diff != "" {
		t.Fatalf("version output mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parley.yaml")
	yaml := "server:\n  port: 9090\ninference:\n  provider: bedrock\n  region: eu-west-1\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"validate", "--config", path, "--env-file", filepath.Join(dir, "missing.env")})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "Configuration is valid\n") {
		t.Fatalf("unexpected output: %q", out.String())
	}
	if !strings.Contains(out.String(), "port=9090") {
		t.Fatalf("config file not applied: %q", out.String())
	}
}

func TestValidateCmd_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parley.yaml")
	if err := os.WriteFile(path, []byte("inference:\n  temperature: 3\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", "--config", path, "--env-file", filepath.Join(dir, "missing.env")})

	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestAsk(t *testing.T) {
	mock := mocks.NewTextProvider("Hola")
	var out bytes.Buffer

	err := ask(context.Background(), &out, mock, zap.NewNop(), processing.ChatRequest{Language: "spanish", FreeformText: "Hi"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if diff := cmp.Diff("Hola\n", out.String()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"You are a chatbot. You respond in spanish.\n\nHi\n\n"}, mock.Prompts()); diff != "" {
		t.Fatalf("prompt mismatch (-want +got):\n%s", diff)
	}
}

func TestAsk_Placeholder(t *testing.T) {
	var out bytes.Buffer
	err := ask(context.Background(), &out, mocks.NewMockProvider(nil), zap.NewNop(), processing.ChatRequest{Language: "english"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if diff := cmp.Diff(processing.NoResponsePlaceholder+"\n", out.String()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestAsk_ProviderError(t *testing.T) {
	var out bytes.Buffer
	err := ask(context.Background(), &out, mocks.NewErrorProvider(provider.ErrThrottled), zap.NewNop(), processing.ChatRequest{})
	if !errors.Is(err, provider.ErrThrottled) {
		t.Fatalf("expected throttled error, got %v", err)
	}
	if diff := cmp.Diff("Chatbot processing failed: throttled", err.Error()); diff != "" {
		t.Fatalf("error mismatch (-want +got):\n%s", diff)
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected output: %q", out.String())
	}
}
