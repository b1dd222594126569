package app

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ggonzalez94/aptos-agent-cli/internal/registry"
)

func TestTrimRootPath(t *testing.T) {
	if got := trimRootPath("aptagent swap quote"); got != "swap quote" {
		t.Fatalf("unexpected trim result: %s", got)
	}
}

func TestIsLikelyUsageError(t *testing.T) {
	if !isLikelyUsageError(errFor("unknown command \"swaap\" for \"aptagent\"")) {
		t.Fatal("unknown command should read as a usage error")
	}
	if isLikelyUsageError(errFor("connection refused")) {
		t.Fatal("transport failures are not usage errors")
	}
}

func TestRunnerAdaptersList(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"adapters", "list", "--results-only"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var out []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse output json: %v output=%s", err, stdout.String())
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 adapters, got %d", len(out))
	}
	names := map[string]bool{}
	routers := map[string]string{}
	for _, info := range out {
		name := info["name"].(string)
		names[name] = true
		if router, ok := info["router"].(string); ok {
			routers[name] = router
		}
	}
	for _, want := range []string{"cellana", "liquidswap", "panora"} {
		if !names[want] {
			t.Fatalf("missing adapter %s in %v", want, names)
		}
	}
	if routers["cellana"] != registry.CellanaRouter || routers["liquidswap"] != registry.LiquidswapRouter {
		t.Fatalf("venue catalog metadata not merged: %v", routers)
	}
}

func TestRunnerAssetsListIncludesNative(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"assets", "list", "--no-cache", "--results-only"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var out []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse output json: %v output=%s", err, stdout.String())
	}
	foundNative := false
	for _, asset := range out {
		if asset["symbol"] == "APT" && asset["native"] == true {
			foundNative = true
		}
	}
	if !foundNative {
		t.Fatalf("native asset missing from %s", stdout.String())
	}
}

func TestRunnerBlockedCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"adapters", "list", "--enable-commands", "swap quote"})
	if code != 16 {
		t.Fatalf("expected exit 16, got %d stderr=%s", code, stderr.String())
	}
	var env map[string]any
	if err := json.Unmarshal(stderr.Bytes(), &env); err != nil {
		t.Fatalf("failed to parse error envelope: %v output=%s", err, stderr.String())
	}
	if env["success"] != false {
		t.Fatalf("expected success=false, got %v", env["success"])
	}
	errBody, _ := env["error"].(map[string]any)
	if errBody == nil || errBody["type"] != "command_blocked" {
		t.Fatalf("expected command_blocked error, got %v", env["error"])
	}
}

func TestRunnerUnknownCommandIsUsage(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"swaap"})
	if code != 2 {
		t.Fatalf("expected exit 2, got %d stderr=%s", code, stderr.String())
	}
	var env map[string]any
	if err := json.Unmarshal(stderr.Bytes(), &env); err != nil {
		t.Fatalf("failed to parse error envelope: %v output=%s", err, stderr.String())
	}
	errBody, _ := env["error"].(map[string]any)
	if errBody == nil || errBody["type"] != "usage_error" {
		t.Fatalf("expected usage_error, got %v", env["error"])
	}
}

func TestRunnerConflictingOutputFlags(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"adapters", "list", "--json", "--plain"})
	if code != 2 {
		t.Fatalf("expected exit 2, got %d stderr=%s", code, stderr.String())
	}
}

func TestRunnerVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"version"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) == "" {
		t.Fatal("expected a version string")
	}
}

func TestRunnerSchemaSubcommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"schema", "swap", "--results-only"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var out map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse schema: %v output=%s", err, stdout.String())
	}
	subs, _ := out["subcommands"].([]any)
	if len(subs) != 3 {
		t.Fatalf("expected 3 swap subcommands, got %d", len(subs))
	}
}

func TestRunnerWorkflowsListEmpty(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APT_WORKFLOWS_PATH", filepath.Join(dir, "workflows.db"))
	t.Setenv("APT_WORKFLOWS_LOCK_PATH", filepath.Join(dir, "workflows.lock"))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"workflows", "list", "--no-cache", "--results-only"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var out []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse output json: %v output=%s", err, stdout.String())
	}
	if len(out) != 0 {
		t.Fatalf("expected no workflows, got %d", len(out))
	}
}

func errFor(msg string) error { return &plainError{msg: msg} }

type plainError struct{ msg string }

func (e *plainError) Error() string { return e.msg }
