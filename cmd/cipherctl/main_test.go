package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RowanDark/cipherkit/internal/rpc"
)

const fox = "The quick brown fox jumps over the lazy dog"

// isolate runs the test from an empty working directory with an empty HOME
// and returns the working directory.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	work := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CIPHERKIT_CONFIG", "")
	t.Setenv("CIPHERKIT_RECIPES_DIR", "")
	t.Setenv("CIPHERKIT_UPDATE_URL", "")
	t.Setenv("CIPHERKIT_UPDATE_PUBLIC_KEY", "")
	t.Chdir(work)
	return work
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersionAndUsage(t *testing.T) {
	isolate(t)

	code, out, _ := runCLI(t, "", "version")
	if code != 0 || strings.TrimSpace(out) != "cipherkit dev" {
		t.Fatalf("version: code %d, output %q", code, out)
	}
	code, out, _ = runCLI(t, "", "--version")
	if code != 0 || strings.TrimSpace(out) != "cipherkit dev" {
		t.Fatalf("--version: code %d, output %q", code, out)
	}
	if code, _, _ := runCLI(t, "", "version", "extra"); code != 2 {
		t.Fatalf("version with args: expected 2, got %d", code)
	}

	code, _, errOut := runCLI(t, "")
	if code != 2 || !strings.Contains(errOut, cliBanner) {
		t.Fatalf("no args: code %d, stderr %q", code, errOut)
	}
	code, out, _ = runCLI(t, "", "help")
	if code != 0 || !strings.Contains(out, "bacon hide|reveal") {
		t.Fatalf("help: code %d, output %q", code, out)
	}
	if !strings.Contains(out, "bury the a/b symbols of a code stream") {
		t.Fatalf("help should describe scatter as burying existing symbols: %q", out)
	}
	if code, _, _ := runCLI(t, "", "enigma"); code != 2 {
		t.Fatalf("unknown command: expected 2, got %d", code)
	}
	if code, _, _ := runCLI(t, "", "--no-such-flag"); code != 2 {
		t.Fatalf("unknown flag: expected 2, got %d", code)
	}
}

func TestCipherCommands(t *testing.T) {
	isolate(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{name: "caesar encrypt", args: []string{"caesar", "encrypt", "--shift", "3", "Attack at dawn!"}, want: "Dwwdfn dw gdzq!"},
		{name: "caesar decrypt from stdin", stdin: "Dwwdfn dw gdzq!\n", args: []string{"caesar", "decrypt", "-s", "3"}, want: "Attack at dawn!"},
		{name: "caesar negative shift", args: []string{"caesar", "encrypt", "--shift", "-3", "abc"}, want: "xyz"},
		{name: "caesar drop foreign", args: []string{"caesar", "encrypt", "--shift=1", "--drop-foreign", "a b!"}, want: "bc"},
		{name: "caesar joins args", args: []string{"caesar", "encrypt", "--shift", "1", "a", "b"}, want: "b c"},
		{name: "rot13", args: []string{"rot13", "Hello"}, want: "Uryyb"},
		{name: "bacon encode", args: []string{"bacon", "encode", "ab"}, want: "aaaaaaaaab"},
		{name: "bacon decode", args: []string{"bacon", "decode", "abaababaaaabbabbabbb"}, want: "jinx"},
		{name: "bacon decode v1", args: []string{"bacon", "decode", "--version", "1", "abaaabaabb"}, want: "iu"},
		{name: "bacon hide", args: []string{"bacon", "hide", "--cover", fox, "jinx uve"}, want: "tHe qUiCk broWN fOX jUMPS oVer ThE lAzy Dog"},
		{name: "bacon reveal", args: []string{"bacon", "reveal", "tHe qUiCk broWN fOX jUMPS oVer ThE lAzy Dog"}, want: "jinxuve"},
		{name: "bacon scatter without noise", args: []string{"bacon", "scatter", "--noise", "0", "abaab"}, want: "abaab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := runCLI(t, tt.stdin, tt.args...)
			if code != 0 {
				t.Fatalf("exit code %d, stderr %q", code, errOut)
			}
			if got := strings.TrimSuffix(out, "\n"); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBaconScatterSeeded(t *testing.T) {
	isolate(t)

	args := []string{"bacon", "scatter", "--noise", "4", "--seed", "42", "abaababaaaabbabbabbb"}
	_, first, _ := runCLI(t, "", args...)
	_, second, _ := runCLI(t, "", args...)
	if first != second {
		t.Fatalf("seeded scatter differs: %q vs %q", first, second)
	}

	code, out, errOut := runCLI(t, first, "bacon", "decode", "--drop-foreign")
	if code != 0 || strings.TrimSpace(out) != "jinx" {
		t.Fatalf("decode scattered: code %d, output %q, stderr %q", code, out, errOut)
	}
}

func TestCipherCommandErrors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{name: "caesar without subcommand", args: []string{"caesar"}, code: 2},
		{name: "caesar unknown subcommand", args: []string{"caesar", "rotate"}, code: 2},
		{name: "caesar without shift", args: []string{"caesar", "encrypt", "abc"}, code: 2},
		{name: "caesar bad alphabet", args: []string{"caesar", "encrypt", "--shift", "1", "--alphabet", "aa", "abc"}, code: 1},
		{name: "bacon without subcommand", args: []string{"bacon"}, code: 2},
		{name: "bacon unknown subcommand", args: []string{"bacon", "fry"}, code: 2},
		{name: "bacon bad version", args: []string{"bacon", "encode", "--version", "3", "abc"}, code: 1},
		{name: "bacon hide without cover", args: []string{"bacon", "hide", "abc"}, code: 2},
		{name: "bacon hide short cover", args: []string{"bacon", "hide", "--cover", "too short", "hello"}, code: 1},
		{name: "bacon hide missing cover file", args: []string{"bacon", "hide", "--cover-file", "/does/not/exist", "abc"}, code: 1},
		{name: "bacon negative noise", args: []string{"bacon", "scatter", "--noise", "-1", "ab"}, code: 1},
		{name: "bacon noise above limit", args: []string{"bacon", "scatter", "--noise", "17", "ab"}, code: 1},
		{name: "bacon seed out of range", args: []string{"bacon", "scatter", "--seed", "3000000000", "ab"}, code: 1},
		{name: "help flag", args: []string{"caesar", "encrypt", "--help"}, code: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, errOut := runCLI(t, "", tt.args...); code != tt.code {
				t.Fatalf("expected exit %d, got %d (stderr %q)", tt.code, code, errOut)
			}
		})
	}
}

func TestCoverFile(t *testing.T) {
	work := isolate(t)
	path := filepath.Join(work, "cover.txt")
	if err := os.WriteFile(path, []byte(fox), 0o644); err != nil {
		t.Fatalf("write cover: %v", err)
	}

	code, out, errOut := runCLI(t, "", "bacon", "hide", "--cover-file", path, "jinx uve")
	if code != 0 {
		t.Fatalf("exit %d, stderr %q", code, errOut)
	}
	if strings.TrimSpace(out) != "tHe qUiCk broWN fOX jUMPS oVer ThE lAzy Dog" {
		t.Fatalf("unexpected output %q", out)
	}
	if code, _, _ := runCLI(t, "", "bacon", "hide", "--cover", fox, "--cover-file", path, "x"); code != 2 {
		t.Fatalf("expected usage error for both cover flags, got %d", code)
	}
}

func TestConfigDefaultsApply(t *testing.T) {
	work := isolate(t)
	cfg := "bacon:\n  version: 1\ncaesar:\n  include_foreign_chars: false\n"
	if err := os.WriteFile(filepath.Join(work, "cipherkit.yml"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, out, _ := runCLI(t, "", "bacon", "encode", "jv")
	if strings.TrimSpace(out) != "abaaabaabb" {
		t.Fatalf("expected v1 codes, got %q", out)
	}
	_, out, _ = runCLI(t, "", "caesar", "encrypt", "--shift", "1", "a b")
	if strings.TrimSpace(out) != "bc" {
		t.Fatalf("expected foreign chars dropped, got %q", out)
	}
	// Flags override configuration.
	_, out, _ = runCLI(t, "", "bacon", "encode", "--version", "2", "jv")
	if strings.TrimSpace(out) != "abaabbabab" {
		t.Fatalf("expected v2 codes, got %q", out)
	}

	code, out, _ := runCLI(t, "", "config", "print")
	if code != 0 || !strings.Contains(out, "version: 1") || !strings.Contains(out, "include_foreign_chars: false") {
		t.Fatalf("config print: code %d, output %q", code, out)
	}
	if code, _, _ := runCLI(t, "", "config"); code != 2 {
		t.Fatalf("config without subcommand: expected 2, got %d", code)
	}
	if code, _, _ := runCLI(t, "", "config", "edit"); code != 2 {
		t.Fatalf("unknown config subcommand: expected 2, got %d", code)
	}
}

func TestInvalidConfig(t *testing.T) {
	isolate(t)
	t.Setenv("CIPHERKIT_BACON_VERSION", "9")

	code, _, errOut := runCLI(t, "", "rot13", "abc")
	if code != 1 || !strings.Contains(errOut, "load config") {
		t.Fatalf("expected config error, got code %d stderr %q", code, errOut)
	}
}

func TestDetectCommand(t *testing.T) {
	isolate(t)
	const (
		plain   = "It was the best of times, it was the worst of times, it was the age of wisdom"
		dickens = "Pa dhz aol ilza vm aptlz, pa dhz aol dvyza vm aptlz, pa dhz aol hnl vm dpzkvt"
	)

	code, out, _ := runCLI(t, "", "detect", dickens)
	if code != 0 || !strings.Contains(out, "caesar_decrypt") || !strings.Contains(out, "shift=7") {
		t.Fatalf("detect: code %d, output %q", code, out)
	}

	code, out, _ = runCLI(t, dickens+"\n", "detect", "--apply")
	if code != 0 || strings.TrimSpace(out) != plain {
		t.Fatalf("detect --apply: code %d, output %q", code, out)
	}

	code, out, _ = runCLI(t, "", "detect", "--json", "abaababaaaabbabbabbb")
	if code != 0 || !strings.Contains(out, `"encoding": "bacon"`) {
		t.Fatalf("detect --json: code %d, output %q", code, out)
	}

	code, out, _ = runCLI(t, "", "detect", plain)
	if code != 0 || strings.TrimSpace(out) != "no cipher detected" {
		t.Fatalf("plain text: code %d, output %q", code, out)
	}
	if code, _, _ := runCLI(t, "", "detect", "--apply", plain); code != 1 {
		t.Fatalf("apply without detection: expected 1, got %d", code)
	}
	if code, _, _ := runCLI(t, "", "detect"); code != 2 {
		t.Fatalf("empty input: expected 2, got %d", code)
	}
}

func TestOpsCommand(t *testing.T) {
	isolate(t)

	code, out, _ := runCLI(t, "", "ops")
	if code != 0 {
		t.Fatalf("ops: exit %d", code)
	}
	for _, name := range []string{"caesar_encrypt", "rot13", "bacon_scatter"} {
		if !strings.Contains(out, name) {
			t.Errorf("ops output missing %s: %q", name, out)
		}
	}

	_, out, _ = runCLI(t, "", "ops", "--type", "hide,reveal")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two operations, got %q", out)
	}
}

const recipeYAML = `name: shift-bacon
description: Caesar shift then Baconian
tags: [caesar, bacon]
pipeline:
  reversible: true
  operations:
    - name: caesar_encrypt
      parameters:
        shift: 1
    - name: bacon_encode
`

func TestRecipeCommands(t *testing.T) {
	work := isolate(t)
	recipesDir := filepath.Join(work, "recipes")
	t.Setenv("CIPHERKIT_RECIPES_DIR", recipesDir)

	src := filepath.Join(work, "shift.yml")
	if err := os.WriteFile(src, []byte(recipeYAML), 0o644); err != nil {
		t.Fatalf("write recipe: %v", err)
	}

	code, out, errOut := runCLI(t, "", "recipe", "import", src)
	if code != 0 || strings.TrimSpace(out) != "imported shift-bacon" {
		t.Fatalf("import: code %d, output %q, stderr %q", code, out, errOut)
	}
	if _, err := os.Stat(filepath.Join(recipesDir, "shift-bacon.yaml")); err != nil {
		t.Fatalf("expected persisted recipe: %v", err)
	}

	_, out, _ = runCLI(t, "", "recipe", "list")
	if !strings.Contains(out, "shift-bacon") || !strings.Contains(out, "caesar_encrypt>bacon_encode") {
		t.Fatalf("list: %q", out)
	}
	_, out, _ = runCLI(t, "", "recipe", "list", "-q", "vigenere")
	if strings.Contains(out, "shift-bacon") {
		t.Fatalf("search should not match: %q", out)
	}

	code, out, _ = runCLI(t, "", "recipe", "run", "shift-bacon", "ab")
	if code != 0 || strings.TrimSpace(out) != "aaaabaaaba" {
		t.Fatalf("run: code %d, output %q", code, out)
	}
	code, out, _ = runCLI(t, "aaaabaaaba\n", "recipe", "run", "--reverse", "shift-bacon")
	if code != 0 || strings.TrimSpace(out) != "ab" {
		t.Fatalf("reverse run: code %d, output %q", code, out)
	}

	code, out, _ = runCLI(t, "", "recipe", "export", "--format", "json", "shift-bacon")
	if code != 0 || !strings.Contains(out, `"name": "shift-bacon"`) {
		t.Fatalf("export json: code %d, output %q", code, out)
	}
	code, out, _ = runCLI(t, "", "recipe", "show", "shift-bacon")
	if code != 0 || !strings.Contains(out, "name: shift-bacon") {
		t.Fatalf("show: code %d, output %q", code, out)
	}

	// CBOR export piped back through stdin.
	var cborOut bytes.Buffer
	if code := run([]string{"recipe", "export", "-f", "cbor", "shift-bacon"}, strings.NewReader(""), &cborOut, &bytes.Buffer{}); code != 0 {
		t.Fatalf("export cbor: exit %d", code)
	}
	if code, _, _ := runCLI(t, "", "recipe", "delete", "shift-bacon"); code != 0 {
		t.Fatalf("delete: exit %d", code)
	}
	if code, _, _ := runCLI(t, "", "recipe", "run", "shift-bacon", "ab"); code != 1 {
		t.Fatalf("run after delete: expected 1, got %d", code)
	}
	code, out, errOut = runCLI(t, cborOut.String(), "recipe", "import", "--format", "cbor", "-")
	if code != 0 || strings.TrimSpace(out) != "imported shift-bacon" {
		t.Fatalf("import cbor: code %d, output %q, stderr %q", code, out, errOut)
	}
}

func TestRecipeCommandErrors(t *testing.T) {
	work := isolate(t)

	if code, _, errOut := runCLI(t, "", "recipe", "list"); code != 1 || !strings.Contains(errOut, "recipes_dir") {
		t.Fatalf("unconfigured dir: code %d, stderr %q", code, errOut)
	}

	recipesDir := filepath.Join(work, "recipes")
	t.Setenv("CIPHERKIT_RECIPES_DIR", recipesDir)
	scatter := "name: noisy\npipeline:\n  reversible: false\n  operations:\n    - name: bacon_scatter\n"
	if err := os.MkdirAll(recipesDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(recipesDir, "noisy.yaml"), []byte(scatter), 0o644); err != nil {
		t.Fatalf("write recipe: %v", err)
	}

	tests := []struct {
		name string
		args []string
		code int
	}{
		{name: "no subcommand", args: []string{"recipe"}, code: 2},
		{name: "unknown subcommand", args: []string{"recipe", "bake"}, code: 2},
		{name: "run without name", args: []string{"recipe", "run"}, code: 2},
		{name: "run missing recipe", args: []string{"recipe", "run", "missing", "x"}, code: 1},
		{name: "reverse irreversible", args: []string{"recipe", "run", "-r", "noisy", "x"}, code: 1},
		{name: "export bad format", args: []string{"recipe", "export", "-f", "xml", "noisy"}, code: 1},
		{name: "import without file", args: []string{"recipe", "import"}, code: 2},
		{name: "import missing file", args: []string{"recipe", "import", "/does/not/exist.yml"}, code: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, errOut := runCLI(t, "", tt.args...); code != tt.code {
				t.Fatalf("expected exit %d, got %d (stderr %q)", tt.code, code, errOut)
			}
		})
	}
}

func TestRemoteServer(t *testing.T) {
	isolate(t)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- rpc.NewServer().Serve(ctx, lis)
	}()
	defer func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	}()

	addr := lis.Addr().String()
	code, out, errOut := runCLI(t, "", "--server", addr, "caesar", "encrypt", "--shift", "3", "Attack at dawn!")
	if code != 0 || strings.TrimSpace(out) != "Dwwdfn dw gdzq!" {
		t.Fatalf("remote caesar: code %d, output %q, stderr %q", code, out, errOut)
	}

	code, out, _ = runCLI(t, "", "--server", addr, "detect", "--apply", "abaababaaaabbabbabbb")
	if code != 0 || strings.TrimSpace(out) != "jinx" {
		t.Fatalf("remote detect: code %d, output %q", code, out)
	}

	code, out, _ = runCLI(t, "", "--server", addr, "ops", "-t", "obscure")
	if code != 0 || !strings.Contains(out, "bacon_scatter") {
		t.Fatalf("remote ops: code %d, output %q", code, out)
	}

	if code, _, _ := runCLI(t, "", "--server", addr, "caesar", "encrypt", "--shift", "1", "--alphabet", "aa", "x"); code != 1 {
		t.Fatalf("remote failure: expected exit 1, got %d", code)
	}
}
