package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/ruin/internal/engine"
	"github.com/starford/ruin/internal/index"
	"github.com/starford/ruin/internal/models"
	"github.com/starford/ruin/internal/testutil"
)

type testBackend struct {
	env       *testutil.Env
	served    bool
	mcpServed bool
	closed    int
}

func (b *testBackend) Engine() engine.NoteEngine { return b.env.Engine }
func (b *testBackend) AutoSync() bool { return true }
func (b *testBackend) Serve(context.Context) error { b.served = true; return nil }
func (b *testBackend) ServeMCP(context.Context) error { b.mcpServed = true; return nil }
func (b *testBackend) Close() error { b.closed++; return nil }

func newBackend(t *testing.T) *testBackend {
	t.Helper()
	clock := testutil.NewClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	return &testBackend{env: testutil.TestEngine(t, engine.WithClock(clock.Now))}
}

type result struct {
	out    string
	errOut string
	err    error
}

func run(t *testing.T, b *testBackend, stdin string, opts []Option, args ...string) result {
	t.Helper()
	cmd := New(func(context.Context, string) (Backend, error) { return b, nil }, opts...)
	var out, errOut bytes.Buffer
	cmd.Writer = &out
	cmd.ErrWriter = &errOut
	cmd.Reader = strings.NewReader(stdin)
	err := cmd.Run(context.Background(), append([]string{"ruin"}, args...))
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func interactive() []Option {
	return []Option{WithTerminal(func(any) bool { return true })}
}

func mustLog(t *testing.T, b *testBackend, content string) models.LogResult {
	t.Helper()
	res, err := b.env.Engine.Create(context.Background(), content, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return *res
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return v
}

func TestLog_Args(t *testing.T) {
	b := newBackend(t)
	r := run(t, b, "", nil, "log", "--json", "Buy", "milk", "#errands")
	if r.err != nil {
		t.Fatalf("log: %v", r.err)
	}
	got := decode[models.LogResult](t, r.out)
	if got.UUID == "" || !filepath.IsAbs(got.Path) {
		t.Fatalf("result = %+v", got)
	}
	data, err := os.ReadFile(got.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Buy milk #errands") {
		t.Errorf("file = %s", data)
	}
	if b.closed != 1 {
		t.Errorf("backend closed %d times", b.closed)
	}
}

func TestLog_Stdin(t *testing.T) {
	b := newBackend(t)
	r := run(t, b, "# Standup\nnotes from today #work\n", nil, "log", "--stdin", "--json")
	if r.err != nil {
		t.Fatalf("log: %v", r.err)
	}
	got := decode[models.LogResult](t, r.out)

	n, err := b.env.Engine.Get(context.Background(), got.UUID)
	if err != nil {
		t.Fatal(err)
	}
	if n.Title != "Standup" || len(n.Tags) != 1 || n.Tags[0] != "work" {
		t.Errorf("note = %+v", n)
	}
}

func TestLog_Title(t *testing.T) {
	b := newBackend(t)
	r := run(t, b, "", nil, "log", "--title", "Groceries", "--json", "eggs")
	if r.err != nil {
		t.Fatalf("log: %v", r.err)
	}
	got := decode[models.LogResult](t, r.out)
	n, _ := b.env.Engine.Get(context.Background(), got.UUID)
	if n == nil || n.Title != "Groceries" {
		t.Errorf("note = %+v", n)
	}
}

func TestLog_TrailingFlags(t *testing.T) {
	b := newBackend(t)
	r := run(t, b, "", nil, "log", "eggs", "and", "milk", "--title", "Groceries", "--json")
	if r.err != nil {
		t.Fatalf("log: %v", r.err)
	}
	got := decode[models.LogResult](t, r.out)
	n, _ := b.env.Engine.Get(context.Background(), got.UUID)
	if n == nil || n.Title != "Groceries" || strings.Contains(string(n.Content), "--title") {
		t.Fatalf("note = %+v", n)
	}

	r = run(t, b, "", nil, "log", "bread", "-t=Bakery", "--json")
	got = decode[models.LogResult](t, r.out)
	if n, _ := b.env.Engine.Get(context.Background(), got.UUID); n == nil || n.Title != "Bakery" {
		t.Errorf("note = %+v", n)
	}

	if r = run(t, b, "", nil, "log", "--", "--verbatim", "text"); r.err != nil {
		t.Fatalf("log after --: %v", r.err)
	}
	all, _ := b.env.Engine.All(context.Background())
	found := false
	for _, n := range all {
		if strings.HasPrefix(n.Body, "--verbatim text") {
			found = true
		}
	}
	if !found {
		t.Errorf("content after -- not kept verbatim: %+v", all)
	}
}

func TestLog_UnknownTrailingFlag(t *testing.T) {
	b := newBackend(t)
	r := run(t, b, "", nil, "log", "text", "--titel", "T")
	if r.err == nil || !strings.Contains(r.err.Error(), "titel") {
		t.Fatalf("err = %v, want unknown flag", r.err)
	}
	if all, _ := b.env.Engine.All(context.Background()); len(all) != 0 {
		t.Errorf("note written despite usage error: %+v", all)
	}

	if r := run(t, b, "", nil, "log", "text", "--title"); r.err == nil {
		t.Error("--title without a value should fail")
	}
}

func TestLog_Empty(t *testing.T) {
	b := newBackend(t)
	if r := run(t, b, "", nil, "log"); r.err == nil {
		t.Fatal("empty log should fail")
	}
}

func TestSearch_JSON(t *testing.T) {
	b := newBackend(t)
	mustLog(t, b, "Buy milk #errands")
	mustLog(t, b, "Call mom")

	r := run(t, b, "", nil, "search", "milk && #errands", "--json")
	if r.err != nil {
		t.Fatalf("search: %v", r.err)
	}
	got := decode[[]models.Summary](t, r.out)
	if len(got) != 1 || got[0].Tags[0] != "errands" {
		t.Errorf("results = %+v", got)
	}

	r = run(t, b, "", nil, "search", "--json", "nothing-matches")
	if strings.TrimSpace(r.out) != "[]" {
		t.Errorf("empty search = %q, want []", r.out)
	}
}

func TestSearch_Plain(t *testing.T) {
	b := newBackend(t)
	res := mustLog(t, b, "# Shopping\nBuy milk #errands")

	r := run(t, b, "", nil, "search", "#errands")
	if r.err != nil {
		t.Fatalf("search: %v", r.err)
	}
	for _, want := range []string{"Shopping", "#errands", res.Path} {
		if !strings.Contains(r.out, want) {
			t.Errorf("output missing %q:\n%s", want, r.out)
		}
	}

	r = run(t, b, "", nil, "search", "#nothing")
	if !strings.Contains(r.out, "No notes.") {
		t.Errorf("empty output = %q", r.out)
	}
}

func TestSearch_SyntaxError(t *testing.T) {
	b := newBackend(t)
	r := run(t, b, "", nil, "search", "before:someday", "--json")
	if r.err == nil {
		t.Fatal("expected syntax error")
	}
	if !strings.Contains(r.err.Error(), "before:someday") {
		t.Errorf("error does not name the clause: %v", r.err)
	}
}

func TestToday(t *testing.T) {
	b := newBackend(t)
	mustLog(t, b, "today's note")

	r := run(t, b, "", nil, "today", "--json")
	if r.err != nil {
		t.Fatalf("today: %v", r.err)
	}
	if got := decode[[]models.Summary](t, r.out); len(got) != 1 {
		t.Errorf("today = %+v", got)
	}
}

func TestShow(t *testing.T) {
	b := newBackend(t)
	res := mustLog(t, b, "# Title\nbody text #x")

	r := run(t, b, "", nil, "show", res.UUID, "--raw")
	if r.err != nil {
		t.Fatalf("show: %v", r.err)
	}
	if !strings.Contains(r.out, "body text #x") || !strings.Contains(r.out, res.UUID) {
		t.Errorf("raw output = %q", r.out)
	}

	r = run(t, b, "", nil, "show", "--json", res.UUID)
	got := decode[noteJSON](t, r.out)
	if got.UUID != res.UUID || got.Title != "Title" || !strings.Contains(got.Content, "body text") {
		t.Errorf("json = %+v", got)
	}

	if r := run(t, b, "", nil, "show", "missing-id"); r.err == nil {
		t.Error("show of unknown id should fail")
	}
}

func TestTags_ListJSON(t *testing.T) {
	b := newBackend(t)
	r := run(t, b, "", nil, "tags", "list", "--json")
	if strings.TrimSpace(r.out) != "[]" {
		t.Errorf("empty tags = %q", r.out)
	}

	mustLog(t, b, "one #a")
	mustLog(t, b, "two #a #b")
	r = run(t, b, "", nil, "tags", "list", "--json")
	got := decode[[]models.Tag](t, r.out)
	if len(got) != 2 || got[0].Name != "a" || got[0].Count != 2 {
		t.Errorf("tags = %+v", got)
	}
	if !strings.Contains(r.out, `"Name"`) || !strings.Contains(r.out, `"Count"`) {
		t.Errorf("tag keys changed: %s", r.out)
	}
}

func TestTags_RenameRefusesWithoutTerminal(t *testing.T) {
	b := newBackend(t)
	mustLog(t, b, "one #a")

	r := run(t, b, "y\n", nil, "tags", "rename", "a", "b")
	if r.err == nil || !strings.Contains(r.err.Error(), "--force") {
		t.Fatalf("err = %v, want refusal", r.err)
	}
	if n, _ := b.env.DB.TagCount("a"); n != 1 {
		t.Errorf("tag a count = %d, rename should not have run", n)
	}

	r = run(t, b, "", nil, "tags", "rename", "a", "b", "--force")
	if r.err != nil {
		t.Fatalf("forced rename: %v", r.err)
	}
	if n, _ := b.env.DB.TagCount("b"); n != 1 {
		t.Errorf("tag b count = %d", n)
	}
}

func TestTags_ConfirmPrompt(t *testing.T) {
	b := newBackend(t)
	mustLog(t, b, "one #a")

	r := run(t, b, "n\n", interactive(), "tags", "delete", "a")
	if r.err == nil || !strings.Contains(r.err.Error(), "aborted") {
		t.Fatalf("err = %v, want aborted", r.err)
	}
	if !strings.Contains(r.errOut, "[y/N]") {
		t.Errorf("prompt not shown: %q", r.errOut)
	}

	r = run(t, b, "yes\n", interactive(), "tags", "delete", "a")
	if r.err != nil {
		t.Fatalf("confirmed delete: %v", r.err)
	}
	if n, _ := b.env.DB.TagCount("a"); n != 0 {
		t.Errorf("tag a count = %d after delete", n)
	}
}

func TestTags_UsageErrors(t *testing.T) {
	b := newBackend(t)
	if r := run(t, b, "", nil, "tags", "rename", "only-one", "--force"); r.err == nil {
		t.Error("rename with one argument should fail")
	}
	if r := run(t, b, "", nil, "tags", "delete", "--force", "ghost"); r.err == nil {
		t.Error("deleting an unused tag should fail")
	}
}

func TestQueries(t *testing.T) {
	b := newBackend(t)
	mustLog(t, b, "report #work")

	if r := run(t, b, "", nil, "query", "save", "work", "#work && created:this-week"); r.err != nil {
		t.Fatalf("save: %v", r.err)
	}
	if r := run(t, b, "", nil, "query", "save", "broken", "title:"); r.err == nil {
		t.Error("malformed query should not be saved")
	}

	r := run(t, b, "", nil, "query", "list", "--json")
	list := decode[[]models.SavedQuery](t, r.out)
	if len(list) != 1 || list[0].Query != "#work && created:this-week" {
		t.Errorf("list = %+v", list)
	}

	r = run(t, b, "", nil, "query", "run", "work", "--json")
	if got := decode[[]models.Summary](t, r.out); len(got) != 1 {
		t.Errorf("run = %s", r.out)
	}

	if r := run(t, b, "", nil, "query", "delete", "work"); r.err == nil {
		t.Error("delete without --force on a non-terminal should refuse")
	}
	if r := run(t, b, "", nil, "query", "delete", "work", "--force"); r.err != nil {
		t.Fatalf("delete: %v", r.err)
	}
	r = run(t, b, "", nil, "query", "list", "--json")
	if strings.TrimSpace(r.out) != "[]" {
		t.Errorf("list after delete = %q", r.out)
	}
}

func TestSync(t *testing.T) {
	b := newBackend(t)
	if err := os.WriteFile(filepath.Join(b.env.VaultDir, "hand.md"), []byte("hand written #manual\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := run(t, b, "", nil, "sync", "--json")
	if r.err != nil {
		t.Fatalf("sync: %v", r.err)
	}
	rep := decode[index.SyncReport](t, r.out)
	if rep.Indexed != 1 || rep.Adopted != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestServeAndMCP(t *testing.T) {
	b := newBackend(t)
	if r := run(t, b, "", nil, "serve"); r.err != nil || !b.served {
		t.Errorf("serve: err=%v served=%v", r.err, b.served)
	}
	if r := run(t, b, "", nil, "mcp"); r.err != nil || !b.mcpServed {
		t.Errorf("mcp: err=%v served=%v", r.err, b.mcpServed)
	}
}
