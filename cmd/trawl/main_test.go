package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trawl/internal/services"
	"trawl/internal/testsupport"
)

const fixtureCatalog = `artists:
  - id: A
    name: Alpha
    similar: [B, C, D]
    tracks:
      - {id: A-t1, title: First, release_year: 2021, popularity_rank: 1}
      - {id: A-t2, title: Second, release_year: 2022, popularity_rank: 2}
  - id: B
    name: Bravo
    similar: [E]
    tracks:
      - {id: B-t1, title: Only, release_year: 2021, popularity_rank: 1}
  - id: C
    name: Charlie
    tracks:
      - {id: C-t1, title: Old, release_year: 2015, popularity_rank: 1}
  - id: D
    name: Delta
    tracks:
      - {id: D-t1, title: New, release_year: 2023, popularity_rank: 1}
  - id: E
    name: Echo
    tracks:
      - {id: E-t1, title: Late, release_year: 2022, popularity_rank: 1}
`

type cliTestEnv struct {
	baseDir    string
	configPath string
	outputDir  string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("REDIS_URL", "")
	fixture := filepath.Join(base, "catalog.yaml")
	testsupport.WriteString(t, fixture, fixtureCatalog)

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "trawl.toml"),
		outputDir:  filepath.Join(base, "out"),
	}
	content := fmt.Sprintf(`[paths]
output_dir = %q
state_dir = %q
log_dir = %q

[catalog]
backend = "fixture"
fixture_path = %q

[checkpoint]
backend = "file"

[download]
retry_cooldown_seconds = 0

[logging]
format = "json"
level = "error"
`, env.outputDir, filepath.Join(base, "state"), filepath.Join(base, "logs"), fixture)
	testsupport.WriteString(t, env.configPath, content)
	return env
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

var mixArgs = []string{"run", "-a", "A", "-n", "5", "-s", "2", "-d", "2", "-y", "2020-2024", "--session", "mix"}

func TestRunBatchThenResume(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, append(mixArgs, "--max-artists", "2")...)
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	requireContains(t, out, "Batch limit reached")
	requireContains(t, out, "trawl run --resume --session mix --max-artists 2")

	treePath := filepath.Join(env.baseDir, "tree.json")
	out, _, err = runCLI(t, env, "run", "--resume", "--session", "mix", "--tree", treePath)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	requireContains(t, out, "Session mix complete: 5 artists processed in total.")
	requireContains(t, out, "Discovery tree: "+treePath)

	files := testsupport.ListFiles(t, env.outputDir)
	want := []string{
		"Alpha/Alpha - First.mp3",
		"Alpha/Alpha - Second.mp3",
		"Bravo/Bravo - Only.mp3",
		"Delta/Delta - New.mp3",
		"Echo/Echo - Late.mp3",
	}
	if strings.Join(files, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected output files %v", files)
	}

	var tree struct {
		FilteredOut []struct {
			ID     string `json:"id"`
			Reason string `json:"reason"`
		} `json:"filtered_out"`
	}
	if err := json.Unmarshal([]byte(testsupport.ReadString(t, treePath)), &tree); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if len(tree.FilteredOut) != 1 || tree.FilteredOut[0].ID != "C" {
		t.Fatalf("unexpected filtered list %+v", tree.FilteredOut)
	}
}

func TestRunUsageErrorsExitTwo(t *testing.T) {
	env := setupCLITestEnv(t)
	seeds := filepath.Join(env.baseDir, "seeds.txt")
	testsupport.WriteString(t, seeds, "A\n")

	if _, _, err := runCLI(t, env, append(mixArgs, "--max-artists", "1")...); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{name: "no seeds", args: []string{"run"}},
		{name: "seeds twice", args: []string{"run", "-a", "A", "--seeds-file", seeds}},
		{name: "in-top without years", args: []string{"run", "-a", "A", "--in-top", "5"}},
		{name: "bad quality", args: []string{"run", "-a", "A", "-q", "lossless"}},
		{name: "bad flag value", args: []string{"run", "-a", "A", "--tracks", "many"}},
		{name: "resume without session", args: []string{"run", "--resume"}},
		{name: "existing session", args: mixArgs},
		{name: "incompatible resume", args: []string{"run", "-a", "A", "-n", "1", "--session", "mix", "--resume"}},
		{name: "resume and reset", args: []string{"run", "--session", "mix", "--resume", "--reset"}},
		{name: "resume with changed tracks", args: []string{"run", "--session", "mix", "--resume", "-n", "1"}},
		{name: "resume with changed countries", args: []string{"run", "--session", "mix", "--resume", "-C", "FR"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := runCLI(t, env, tc.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if code := exitCode(err); code != services.ExitUsage {
				t.Fatalf("expected exit %d, got %d (%v)", services.ExitUsage, code, err)
			}
		})
	}
}

func TestRunResumeChecksExplicitDiscoveryFlags(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, append(mixArgs, "--max-artists", "1")...); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	_, _, err := runCLI(t, env, "run", "--resume", "--session", "mix", "-n", "1", "-y", "1999")
	if err == nil {
		t.Fatal("expected changed discovery flags to be rejected")
	}
	if code := exitCode(err); code != services.ExitUsage {
		t.Fatalf("expected exit %d, got %d (%v)", services.ExitUsage, code, err)
	}
	requireContains(t, err.Error(), "selection, filters")

	out, _, err := runCLI(t, env, "session", "show", "mix")
	if err != nil {
		t.Fatalf("session show: %v", err)
	}
	requireContains(t, out, "Processed")
	if _, statErr := os.Stat(filepath.Join(env.outputDir, "Bravo")); !os.IsNotExist(statErr) {
		t.Fatal("rejected resume must not process further artists")
	}

	// Repeating the stored values is allowed.
	out, _, err = runCLI(t, env, "run", "--resume", "--session", "mix", "-n", "5", "-y", "2020-2024")
	if err != nil {
		t.Fatalf("resume with matching flags: %v", err)
	}
	requireContains(t, out, "Session mix complete")
}

func TestSessionCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, append(mixArgs, "--max-artists", "1")...); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, env, "session", "list")
	if err != nil {
		t.Fatalf("session list: %v", err)
	}
	requireContains(t, out, "mix")

	out, _, err = runCLI(t, env, "session", "list", "--json")
	if err != nil {
		t.Fatalf("session list --json: %v", err)
	}
	requireContains(t, out, `"session": "mix"`)

	treePath := filepath.Join(env.baseDir, "show-tree.json")
	out, _, err = runCLI(t, env, "session", "show", "mix", "--tree", treePath)
	if err != nil {
		t.Fatalf("session show: %v", err)
	}
	requireContains(t, out, "2020-2024")
	requireContains(t, out, "Discovery tree written")

	if _, _, err := runCLI(t, env, "session", "reset", "mix"); err != nil {
		t.Fatalf("session reset: %v", err)
	}
	out, _, err = runCLI(t, env, "session", "list")
	if err != nil {
		t.Fatalf("session list: %v", err)
	}
	requireContains(t, out, "No sessions stored")

	if _, _, err := runCLI(t, env, "session", "show", "mix"); exitCode(err) != services.ExitUsage {
		t.Fatalf("expected usage error for missing session, got %v", err)
	}
}

func TestCacheCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, append(mixArgs, "--max-artists", "1")...); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, env, "cache", "stats")
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	requireContains(t, out, "Tracks:  2")

	out, _, err = runCLI(t, env, "cache", "list")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	requireContains(t, out, "A-t1")

	if err := os.Remove(filepath.Join(env.outputDir, "Alpha", "Alpha - First.mp3")); err != nil {
		t.Fatal(err)
	}
	out, _, err = runCLI(t, env, "cache", "prune")
	if err != nil {
		t.Fatalf("cache prune: %v", err)
	}
	requireContains(t, out, "Pruned 1 entry")

	out, _, err = runCLI(t, env, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 entry")
}

func TestRunReusesCacheAcrossSessions(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "run", "-a", "A", "--session", "one", "-o", filepath.Join(env.baseDir, "first")); err != nil {
		t.Fatalf("first run: %v", err)
	}
	out, _, err := runCLI(t, env, "run", "-a", "A", "--session", "two", "-o", filepath.Join(env.baseDir, "second"))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !strings.Contains(out, "Tracks skipped") {
		t.Fatalf("expected statistics table, got %q", out)
	}
	files := testsupport.ListFiles(t, filepath.Join(env.baseDir, "second"))
	if len(files) != 2 {
		t.Fatalf("expected cached tracks to be materialized, got %v", files)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Catalog backend: fixture")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}

func TestDoctorReportsChecks(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, _ := runCLI(t, env, "doctor")
	requireContains(t, out, "Output directory")
	requireContains(t, out, "Catalog")
	if strings.Contains(out, "Checkpoint Redis") {
		t.Fatalf("redis should not be checked with file checkpoints: %q", out)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: nil, want: services.ExitOK},
		{err: context.Canceled, want: services.ExitInterrupted},
		{err: fmt.Errorf("wrapped: %w", context.Canceled), want: services.ExitInterrupted},
		{err: fmt.Errorf("%w: bad", services.ErrConfiguration), want: services.ExitUsage},
		{err: errors.New("boom"), want: services.ExitFailure},
	}
	for _, tc := range tests {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestLoadDotEnvKeepsEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	testsupport.WriteString(t, path, "TRAWL_TEST_FROM_FILE=file\nTRAWL_TEST_PRESET=file\n")
	t.Setenv("TRAWL_TEST_PRESET", "env")
	t.Setenv("TRAWL_TEST_FROM_FILE", "")
	os.Unsetenv("TRAWL_TEST_FROM_FILE")

	loadDotEnv(path)
	loadDotEnv(filepath.Join(t.TempDir(), "missing.env"))

	if got := os.Getenv("TRAWL_TEST_FROM_FILE"); got != "file" {
		t.Fatalf("expected value from .env, got %q", got)
	}
	if got := os.Getenv("TRAWL_TEST_PRESET"); got != "env" {
		t.Fatalf("expected real environment to win, got %q", got)
	}
}
