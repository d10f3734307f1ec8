package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"framekit/internal/storage"
	"framekit/internal/target"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDiscover_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[pipeline]\njobs = 3\ncache = \"cache\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := Discover(nested, "")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Pipeline.Jobs != 3 {
		t.Errorf("jobs = %d, want 3", cfg.Pipeline.Jobs)
	}
	if !cfg.Pipeline.VerifyPhis || !cfg.Pipeline.VerifyOutput {
		t.Error("unset keys must keep their defaults")
	}
	if want := filepath.Join(root, "cache"); cfg.Pipeline.Cache != want {
		t.Errorf("cache = %q, want %q", cfg.Pipeline.Cache, want)
	}
	gotRoot, ok, err := FindProjectRoot(nested)
	if err != nil || !ok {
		t.Fatalf("FindProjectRoot: ok=%v err=%v", ok, err)
	}
	if gotRoot != root {
		t.Errorf("root = %q, want %q", gotRoot, root)
	}
}

func TestDiscover_DefaultWithoutFile(t *testing.T) {
	cfg, err := Discover(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path != "" || cfg.Pipeline != Default().Pipeline {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
	tgt, err := cfg.BuildTarget()
	if err != nil {
		t.Fatal(err)
	}
	if tgt.Fingerprint() != target.AMD64().Fingerprint() {
		t.Error("default config must build the built-in target")
	}
}

func TestBuildTarget_Overrides(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[target]
name = "tiny"
word_size = 4
stack_align = 8
general = ["a", "b", "c", "tmp"]
float = ["f0", "f1"]
scratch_float = "f0"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	tgt, err := cfg.BuildTarget()
	if err != nil {
		t.Fatal(err)
	}
	if tgt.Name != "tiny" || tgt.WordSize != 4 || tgt.StackAlign != 8 {
		t.Errorf("target = %s/%d/%d", tgt.Name, tgt.WordSize, tgt.StackAlign)
	}
	if r, ok := tgt.ScratchFor(storage.I32); !ok || r != 3 {
		t.Errorf("general scratch = %s, want r3", r)
	}
	if r, ok := tgt.ScratchFor(storage.F64); !ok || r != 4 {
		t.Errorf("float scratch = %s, want r4", r)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", "[pipeline\n", "failed to parse TOML"},
		{"unknown_key", "[pipeline]\nthreads = 2\n", "unknown keys: pipeline.threads"},
		{"negative_jobs", "[pipeline]\njobs = -1\n", "jobs must not be negative"},
		{"bad_align", "[target]\nstack_align = 12\n", "not a power of two"},
		{"one_class", "[target]\ngeneral = [\"a\"]\n", "both general and float"},
		{"unknown_scratch", "[target]\nscratch_general = \"r99\"\n", "unknown register"},
		{"wrong_class_scratch", "[target]\nscratch_general = \"xmm0\"\n", "want general"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := LoadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestDigest(t *testing.T) {
	a, b := Sum([]byte("a")), Sum([]byte("b"))
	if Combine(a, b) == Combine(b, a) {
		t.Error("Combine must depend on order")
	}
	if Combine(a, b) != Combine(a, b) {
		t.Error("Combine must be deterministic")
	}
	if len(a.String()) != 64 {
		t.Errorf("hex digest length = %d", len(a.String()))
	}
}
