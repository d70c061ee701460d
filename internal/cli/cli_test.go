package cli

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/ankittk/signoff/internal/httpapi"
	"github.com/ankittk/signoff/internal/identity"
	"github.com/ankittk/signoff/pkg/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SIGNOFF_HOME", "SIGNOFF_ADDR", "SIGNOFF_DB_DRIVER", "DATABASE_URL", "SIGNOFF_DATA_DIR",
		"SIGNOFF_LOG_LEVEL", "SIGNOFF_LOG_FORMAT", "SIGNOFF_API_KEY", "SIGNOFF_OTEL", "SIGNOFF_TRACE_FILE",
	} {
		t.Setenv(k, "")
	}
}

// run executes the root command against home and returns stdout.
func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--home", home}, args...))
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, home string, args ...string) string {
	t.Helper()
	out, err := run(t, home, args...)
	if err != nil {
		t.Fatalf("signoff %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	if root == nil {
		t.Fatal("NewRootCmd returned nil")
	}
	cmds := root.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "stop", "status", "task", "identity", "apikey", "doctor"} {
		if !names[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestNewRootCmd_versionFlag(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("Version: got %q", root.Version)
	}
}

func TestNewRootCmd_hasHomeFlag(t *testing.T) {
	root := NewRootCmd("")
	f := root.PersistentFlags().Lookup("home")
	if f == nil {
		t.Fatal("expected --home persistent flag")
	}
}

func TestApikeyGenerate(t *testing.T) {
	clearEnv(t)
	out := mustRun(t, t.TempDir(), "apikey", "generate")
	hexKey := regexp.MustCompile(`(?m)^  ([a-f0-9]{64})$`)
	if !hexKey.MatchString(out) {
		t.Errorf("output should contain a 64-char hex key on its own line; got:\n%s", out)
	}
	if !strings.Contains(out, "SIGNOFF_API_KEY") {
		t.Errorf("output should mention SIGNOFF_API_KEY")
	}
	if !strings.Contains(out, "X-API-Key") {
		t.Errorf("output should mention X-API-Key")
	}
}

func TestTaskFlow_local(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()

	out := mustRun(t, home, "task", "create", "--name", "task1",
		"--approver1", "user1", "--approver2", "user2", "--approver3", "user3",
		"--description", "Review the Q3 budget")
	if strings.TrimSpace(out) != "Task task1 added." {
		t.Fatalf("create: %q", out)
	}
	if _, err := os.Stat(filepath.Join(home, "data", "tasks", "task1.json")); err != nil {
		t.Fatalf("task file: %v", err)
	}

	out = mustRun(t, home, "task", "comment", "task1", "--text", "looks fine", "--user", "user1")
	if strings.TrimSpace(out) != "Comment added to task task1." {
		t.Fatalf("comment: %q", out)
	}
	_, err := run(t, home, "task", "comment", "task1", "--text", "hi", "--user", "user4")
	if err == nil || err.Error() != "User user4 is not an approver for task task1." {
		t.Fatalf("comment by non-approver: %v", err)
	}
	mustRun(t, home, "task", "recommend", "task1", "--text", "approve", "--user", "user2")

	out = mustRun(t, home, "task", "get", "task1")
	for _, want := range []string{"Task: task1", "Description: Review the Q3 budget", "user1: looks fine", "Recommendation: approve (by user2)"} {
		if !strings.Contains(out, want) {
			t.Errorf("get output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, home, "task", "list", "--json")
	var tasks []models.Task
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("list --json: %v\n%s", err, out)
	}
	if len(tasks) != 1 || tasks[0].TaskName != "task1" || len(tasks[0].Comments) != 1 {
		t.Fatalf("list: %+v", tasks)
	}

	out = mustRun(t, home, "task", "clear-comments", "task1", "--user", "user3")
	if strings.TrimSpace(out) != "Comments cleared for task task1." {
		t.Fatalf("clear-comments: %q", out)
	}
	out = mustRun(t, home, "task", "get", "task1", "--json")
	var got models.Task
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("get --json: %v", err)
	}
	if len(got.Comments) != 0 || got.Recommendation != "approve" {
		t.Fatalf("after clear: %+v", got)
	}

	_, err = run(t, home, "task", "create", "--name", "task1")
	if err == nil || err.Error() != "Task task1 already exists." {
		t.Fatalf("duplicate create: %v", err)
	}
	_, err = run(t, home, "task", "get", "nope")
	if err == nil || err.Error() != "Task nope not found." {
		t.Fatalf("get missing: %v", err)
	}
}

func TestTaskFlow_remote(t *testing.T) {
	clearEnv(t)
	app, err := httpapi.NewApp(httpapi.ServerOptions{DBDriver: "memory", APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	ts := httptest.NewServer(app.Server.Handler)
	defer ts.Close()
	home := t.TempDir()

	remote := []string{"--server", ts.URL, "--api-key", "secret"}
	out := mustRun(t, home, append([]string{"task", "create", "--name", "task1", "--approver1", "user1"}, remote...)...)
	if strings.TrimSpace(out) != "Task task1 added." {
		t.Fatalf("create: %q", out)
	}
	_, err = run(t, home, append([]string{"task", "recommend", "task1", "--text", "no", "--user", "user2"}, remote...)...)
	if err == nil || err.Error() != "User user2 is not an approver for task task1." {
		t.Fatalf("recommend by non-approver: %v", err)
	}
	_, err = run(t, home, "task", "list", "--server", ts.URL)
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Fatalf("list without key: %v", err)
	}

	out = mustRun(t, home, append([]string{"task", "list"}, remote...)...)
	if !strings.HasPrefix(out, "task1\tapprovers=user1\tcomments=0\trecommendation=-") {
		t.Fatalf("list: %q", out)
	}
	// Nothing was written locally.
	if _, err := os.Stat(filepath.Join(home, "data")); !os.IsNotExist(err) {
		t.Fatalf("remote commands touched local data: %v", err)
	}
}

func TestTaskComment_defaultUser(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	mustRun(t, home, "task", "create", "--name", "t", "--approver1", "user1")

	_, err := run(t, home, "task", "comment", "t", "--text", "x")
	if err == nil || !strings.Contains(err.Error(), "--user is required") {
		t.Fatalf("comment without user: %v", err)
	}

	if err := identity.Save(home, &identity.Identity{User: "user1"}); err != nil {
		t.Fatal(err)
	}
	mustRun(t, home, "task", "comment", "t", "--text", "x")
	out := mustRun(t, home, "task", "get", "t")
	if !strings.Contains(out, "user1: x") {
		t.Fatalf("comment by saved identity:\n%s", out)
	}
	out = mustRun(t, home, "identity", "show")
	if strings.TrimSpace(out) != "user1" {
		t.Fatalf("identity show: %q", out)
	}
}

func TestIdentityShow_none(t *testing.T) {
	clearEnv(t)
	out := mustRun(t, t.TempDir(), "identity", "show")
	if !strings.Contains(out, "No identity saved") {
		t.Fatalf("identity show: %q", out)
	}
}

func TestDoctor(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	out := mustRun(t, home, "doctor")
	if !strings.Contains(out, "store: json (0 tasks)") || !strings.Contains(out, "ok") {
		t.Fatalf("doctor: %q", out)
	}

	if err := os.WriteFile(filepath.Join(home, "signoff.yaml"), []byte("db_driver: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, home, "doctor"); err == nil {
		t.Fatal("doctor with broken config: expected error")
	}
}

func TestDoctor_sqliteFromConfig(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, "signoff.toml"), []byte("db_driver = \"sqlite\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := mustRun(t, home, "doctor")
	if !strings.Contains(out, "store: sqlite (0 tasks)") {
		t.Fatalf("doctor: %q", out)
	}
	if _, err := os.Stat(filepath.Join(home, "data", "signoff.db")); err != nil {
		t.Fatalf("sqlite file: %v", err)
	}
}

func TestStatus_notRunning(t *testing.T) {
	clearEnv(t)
	out := mustRun(t, t.TempDir(), "status")
	if strings.TrimSpace(out) != "signoff not running" {
		t.Fatalf("status: %q", out)
	}
	out = mustRun(t, t.TempDir(), "stop")
	if strings.TrimSpace(out) != "signoff is not running" {
		t.Fatalf("stop: %q", out)
	}
}

func TestServe_badDriver(t *testing.T) {
	clearEnv(t)
	_, err := run(t, t.TempDir(), "serve", "--db-driver", "bogus", "--addr", "127.0.0.1:0")
	if err == nil {
		t.Fatal("serve with unknown driver: expected error")
	}
}

func TestApikeyGenerate_envFile(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	envFile := filepath.Join(home, ".env")
	out := mustRun(t, home, "apikey", "generate", "--env", envFile)
	if !strings.Contains(out, "signoff serve --env-file "+envFile) {
		t.Fatalf("output: %s", out)
	}
	b, err := os.ReadFile(envFile)
	if err != nil {
		t.Fatal(err)
	}
	if !regexp.MustCompile(`^SIGNOFF_API_KEY=[a-f0-9]{64}\n$`).Match(b) {
		t.Fatalf("env file: %q", b)
	}
}
