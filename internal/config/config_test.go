package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)

	settings, err := Load(GlobalFlags{Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "json" {
		t.Fatalf("expected json output by default, got %s", settings.OutputMode)
	}
	if settings.Timeout != 15*time.Second || settings.Retries != 2 {
		t.Fatalf("unexpected upstream defaults: %v %d", settings.Timeout, settings.Retries)
	}
	if !settings.CacheEnabled {
		t.Fatal("cache should be enabled by default")
	}
	if settings.DefaultSlippagePct != 0.5 {
		t.Fatalf("unexpected default slippage: %v", settings.DefaultSlippagePct)
	}
	if settings.NodeURL == "" || settings.ExplorerBaseURL == "" {
		t.Fatal("node and explorer defaults must be set")
	}
}

func TestLoadFileThenEnvThenFlags(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := `
output: plain
timeout: 30s
node:
  url: https://file.example/v1
swap:
  default_slippage_pct: 1.5
log: debug
`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("APT_NODE_URL", "https://env.example/v1")

	settings, err := Load(GlobalFlags{ConfigPath: cfgPath, JSON: true, Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.NodeURL != "https://env.example/v1" {
		t.Fatalf("env should override file: %s", settings.NodeURL)
	}
	if settings.OutputMode != "json" {
		t.Fatalf("flag should override file output: %s", settings.OutputMode)
	}
	if settings.Timeout != 30*time.Second {
		t.Fatalf("file timeout not applied: %v", settings.Timeout)
	}
	if settings.DefaultSlippagePct != 1.5 {
		t.Fatalf("file slippage not applied: %v", settings.DefaultSlippagePct)
	}
	if settings.LogLevel != "debug" {
		t.Fatalf("file log level not applied: %s", settings.LogLevel)
	}
}

func TestLoadRejectsConflictingOutputFlags(t *testing.T) {
	isolateEnv(t)

	if _, err := Load(GlobalFlags{JSON: true, Plain: true, Retries: -1}); err == nil {
		t.Fatal("expected --json with --plain to fail")
	}
}

func TestLoadParsesSelectAndAllowlist(t *testing.T) {
	isolateEnv(t)

	settings, err := Load(GlobalFlags{
		Select:         " adapter, route ,",
		EnableCommands: "swap quote, account balance",
		Retries:        -1,
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(settings.SelectFields) != 2 || settings.SelectFields[0] != "adapter" || settings.SelectFields[1] != "route" {
		t.Fatalf("unexpected select fields: %#v", settings.SelectFields)
	}
	if len(settings.EnableCommands) != 2 || settings.EnableCommands[1] != "account balance" {
		t.Fatalf("unexpected allowlist: %#v", settings.EnableCommands)
	}
}

func TestLoadNoCacheFlag(t *testing.T) {
	isolateEnv(t)

	settings, err := Load(GlobalFlags{NoCache: true, Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.CacheEnabled {
		t.Fatal("--no-cache should disable the cache")
	}
}
