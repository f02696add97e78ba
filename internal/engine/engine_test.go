package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/ruin/internal/apperr"
	"github.com/starford/ruin/internal/engine"
	"github.com/starford/ruin/internal/index"
	"github.com/starford/ruin/internal/models"
	"github.com/starford/ruin/internal/testutil"
)

var day1 = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func newEnv(t *testing.T, opts ...engine.Option) (*testutil.Env, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(day1)
	opts = append([]engine.Option{engine.WithClock(clock.Now)}, opts...)
	return testutil.TestEngine(t, opts...), clock
}

func mustCreate(t *testing.T, e engine.NoteEngine, content string) *models.LogResult {
	t.Helper()
	res, err := e.Create(context.Background(), content, "")
	if err != nil {
		t.Fatalf("Create(%q): %v", content, err)
	}
	return res
}

func ids(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func search(t *testing.T, e engine.NoteEngine, q string) []string {
	t.Helper()
	notes, err := e.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search(%q): %v", q, err)
	}
	return ids(notes)
}

func tagCounts(t *testing.T, e engine.NoteEngine) map[string]int {
	t.Helper()
	tags, err := e.Tags(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]int, len(tags))
	for _, tg := range tags {
		out[tg.Name] = tg.Count
	}
	return out
}

func tagsOf(t *testing.T, e engine.NoteEngine, id string) []string {
	t.Helper()
	n, err := e.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return n.Tags
}

func TestErrandsScenario(t *testing.T) {
	env, _ := newEnv(t)
	res := mustCreate(t, env.Engine, "Buy milk #errands")

	if got := search(t, env.Engine, "#errands"); !slices.Equal(got, []string{res.UUID}) {
		t.Errorf("#errands = %v", got)
	}
	if got := search(t, env.Engine, "milk"); !slices.Equal(got, []string{res.UUID}) {
		t.Errorf("milk = %v", got)
	}
	if got := search(t, env.Engine, "#groceries"); len(got) != 0 {
		t.Errorf("#groceries = %v", got)
	}
}

func TestCreateIncrementsTagCount(t *testing.T) {
	env, _ := newEnv(t)
	mustCreate(t, env.Engine, "one #work")
	before := tagCounts(t, env.Engine)["work"]

	res := mustCreate(t, env.Engine, "two #work #Work")
	if got := tagCounts(t, env.Engine)["work"]; got != before+1 {
		t.Errorf("work count = %d, want %d", got, before+1)
	}
	if !slices.Contains(search(t, env.Engine, "#work"), res.UUID) {
		t.Error("search #work misses new note")
	}
}

func TestCreateWritesNoteFile(t *testing.T) {
	env, _ := newEnv(t)
	res, err := env.Engine.Create(context.Background(), "# Heading\n\nbody text", "Explicit")
	if err != nil {
		t.Fatal(err)
	}

	if !filepath.IsAbs(res.Path) || !strings.HasPrefix(res.Path, env.VaultDir) {
		t.Errorf("path %q is not inside %q", res.Path, env.VaultDir)
	}
	rel, _ := filepath.Rel(env.VaultDir, res.Path)
	want := regexp.MustCompile(`^2024/01/2024-01-15-[0-9a-f]{8}\.md$`)
	if !want.MatchString(filepath.ToSlash(rel)) {
		t.Errorf("layout = %q", rel)
	}
	if !strings.HasPrefix(filepath.Base(res.Path), "2024-01-15-"+res.UUID[:8]) {
		t.Errorf("file name %q does not carry id prefix", res.Path)
	}

	n, err := env.Engine.Get(context.Background(), res.UUID)
	if err != nil {
		t.Fatal(err)
	}
	if n.Title != "Explicit" {
		t.Errorf("title = %q", n.Title)
	}
	if !n.CreatedAt.Equal(day1) || !n.UpdatedAt.Equal(day1) {
		t.Errorf("timestamps = %v / %v", n.CreatedAt, n.UpdatedAt)
	}
	if !strings.Contains(string(n.Content), res.UUID) || !strings.Contains(string(n.Content), "body text") {
		t.Errorf("content = %q", n.Content)
	}
}

func TestCreateTitleFromHeading(t *testing.T) {
	env, _ := newEnv(t)
	res := mustCreate(t, env.Engine, "# Shopping\n\n- milk")
	n, _ := env.Engine.Get(context.Background(), res.UUID)
	if n.Title != "Shopping" {
		t.Errorf("title = %q, want Shopping", n.Title)
	}
}

func TestCreateEmptyContent(t *testing.T) {
	env, _ := newEnv(t)
	_, err := env.Engine.Create(context.Background(), "   \n", "")
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestGetNotFound(t *testing.T) {
	env, _ := newEnv(t)
	_, err := env.Engine.Get(context.Background(), "nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTodayAcrossDays(t *testing.T) {
	env, clock := newEnv(t)
	first := mustCreate(t, env.Engine, "first day")

	clock.Set(day1.Add(23 * time.Hour))
	second := mustCreate(t, env.Engine, "second day")

	notes, err := env.Engine.Today(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(notes); !slices.Equal(got, []string{second.UUID}) {
		t.Errorf("today = %v, want only %s (not %s)", got, second.UUID, first.UUID)
	}

	all, _ := env.Engine.All(context.Background())
	if got := ids(all); !slices.Equal(got, []string{second.UUID, first.UUID}) {
		t.Errorf("all = %v, want newest first", got)
	}
}

func TestHandEditMovesUpdated(t *testing.T) {
	env, clock := newEnv(t)
	ctx := context.Background()
	res := mustCreate(t, env.Engine, "draft #plan")

	clock.Advance(48 * time.Hour)
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(res.Path, append(data, "edited by hand\n"...), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	if got := search(t, env.Engine, "updated:today"); !slices.Equal(got, []string{res.UUID}) {
		t.Errorf("updated:today = %v", got)
	}
	if got := search(t, env.Engine, "created:today"); len(got) != 0 {
		t.Errorf("created:today = %v, want none", got)
	}
	n, _ := env.Engine.Get(ctx, res.UUID)
	if !n.CreatedAt.Equal(day1) || !strings.Contains(string(n.Content), "edited by hand") {
		t.Errorf("note = %+v", n)
	}
}

func TestSearchSyntaxErrorPropagates(t *testing.T) {
	env, _ := newEnv(t)
	_, err := env.Engine.Search(context.Background(), "#ok && ")
	var se *apperr.SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SyntaxError", err)
	}

	_, err = env.Engine.Search(context.Background(), "between:2024-02-01,2024-01-01")
	if !errors.Is(err, apperr.ErrSyntax) {
		t.Errorf("reversed range err = %v", err)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	env, _ := newEnv(t)
	mustCreate(t, env.Engine, "something")
	if got := search(t, env.Engine, ""); len(got) != 0 {
		t.Errorf("empty query = %v", got)
	}
}

func TestRenameTagRoundTrip(t *testing.T) {
	env, _ := newEnv(t)
	ctx := context.Background()
	a := mustCreate(t, env.Engine, "alpha #a")
	b := mustCreate(t, env.Engine, "beta #a #other")
	before := search(t, env.Engine, "#a")

	if err := env.Engine.RenameTag(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}
	counts := tagCounts(t, env.Engine)
	if _, ok := counts["a"]; ok || counts["b"] != 2 {
		t.Errorf("counts after rename = %v", counts)
	}
	if got := tagsOf(t, env.Engine, b.UUID); !slices.Equal(got, []string{"b", "other"}) {
		t.Errorf("tags = %v", got)
	}
	n, _ := env.Engine.Get(ctx, a.UUID)
	if !strings.Contains(string(n.Content), "alpha #b") {
		t.Errorf("inline tag not rewritten: %q", n.Content)
	}

	if err := env.Engine.RenameTag(ctx, "b", "a"); err != nil {
		t.Fatal(err)
	}
	if got := search(t, env.Engine, "#a"); !slices.Equal(got, before) {
		t.Errorf("after round trip #a = %v, want %v", got, before)
	}
	if _, ok := tagCounts(t, env.Engine)["b"]; ok {
		t.Error("b still listed")
	}
}

func TestUnicodeTags(t *testing.T) {
	env, _ := newEnv(t)
	ctx := context.Background()
	res := mustCreate(t, env.Engine, "Kaffee im #café mit #naïve Leuten")

	if got := tagsOf(t, env.Engine, res.UUID); !slices.Equal(got, []string{"café", "naïve"}) {
		t.Fatalf("tags = %v", got)
	}
	if got := search(t, env.Engine, "#café"); !slices.Equal(got, []string{res.UUID}) {
		t.Errorf("#café = %v", got)
	}

	if err := env.Engine.RenameTag(ctx, "café", "tea"); err != nil {
		t.Fatal(err)
	}
	n, _ := env.Engine.Get(ctx, res.UUID)
	if !strings.Contains(string(n.Content), "Kaffee im #tea mit #naïve Leuten") {
		t.Errorf("body after rename = %q", n.Content)
	}
	if got := tagsOf(t, env.Engine, res.UUID); !slices.Equal(got, []string{"tea", "naïve"}) {
		t.Errorf("tags after rename = %v", got)
	}
	if _, ok := tagCounts(t, env.Engine)["café"]; ok {
		t.Error("café still listed")
	}
}

func TestRenameTagMerge(t *testing.T) {
	env, _ := newEnv(t)
	ctx := context.Background()
	n1 := mustCreate(t, env.Engine, "one #a")
	n2 := mustCreate(t, env.Engine, "two #b")
	n3 := mustCreate(t, env.Engine, "three #a #b")

	if err := env.Engine.RenameTag(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}
	if got := tagCounts(t, env.Engine); got["b"] != 3 || got["a"] != 0 {
		t.Errorf("counts = %v", got)
	}
	if got := tagsOf(t, env.Engine, n3.UUID); !slices.Equal(got, []string{"b"}) {
		t.Errorf("merged tags = %v, want [b]", got)
	}
	got := search(t, env.Engine, "#b")
	slices.Sort(got)
	want := []string{n1.UUID, n2.UUID, n3.UUID}
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("#b = %v, want %v", got, want)
	}

	// The source tag is gone, so repeating the merge cannot duplicate anything.
	if err := env.Engine.RenameTag(ctx, "a", "b"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second rename err = %v, want ErrNotFound", err)
	}
	if got := tagCounts(t, env.Engine)["b"]; got != 3 {
		t.Errorf("b count after repeat = %d", got)
	}
}

func TestRenameTagErrors(t *testing.T) {
	env, _ := newEnv(t)
	ctx := context.Background()
	mustCreate(t, env.Engine, "x #real")

	if err := env.Engine.RenameTag(ctx, "missing", "new"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: %v", err)
	}
	if err := env.Engine.RenameTag(ctx, "real", "bad name"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("bad name: %v", err)
	}
	if err := env.Engine.RenameTag(ctx, "real", ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("empty name: %v", err)
	}
}

func TestDeleteTagUsedByThreeNotes(t *testing.T) {
	env, _ := newEnv(t)
	ctx := context.Background()
	var created []*models.LogResult
	for _, c := range []string{"first #tmp #keep", "second #tmp", "third #tmp"} {
		created = append(created, mustCreate(t, env.Engine, c))
	}

	if err := env.Engine.DeleteTag(ctx, "tmp"); err != nil {
		t.Fatal(err)
	}
	counts := tagCounts(t, env.Engine)
	if _, ok := counts["tmp"]; ok {
		t.Errorf("tmp still listed: %v", counts)
	}
	if counts["keep"] != 1 {
		t.Errorf("keep count = %d", counts["keep"])
	}
	for _, c := range created {
		n, err := env.Engine.Get(ctx, c.UUID)
		if err != nil {
			t.Fatalf("note %s lost: %v", c.UUID, err)
		}
		if slices.Contains(n.Tags, "tmp") {
			t.Errorf("note %s still tagged: %v", c.UUID, n.Tags)
		}
		if strings.Contains(string(n.Content), "#tmp") || !strings.Contains(string(n.Content), "tmp") {
			t.Errorf("inline marker not demoted: %q", n.Content)
		}
	}

	// A resync must not bring the tag back.
	if _, err := env.Engine.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := tagCounts(t, env.Engine)["tmp"]; ok {
		t.Error("tmp resurrected by sync")
	}

	if err := env.Engine.DeleteTag(ctx, "tmp"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

// failingIndex fails UpsertNotes while armed.
type failingIndex struct {
	index.NoteIndex
	mu    sync.Mutex
	armed bool
}

func (f *failingIndex) arm() {
	f.mu.Lock()
	f.armed = true
	f.mu.Unlock()
}

func (f *failingIndex) UpsertNotes(rows ...index.NoteRow) error {
	f.mu.Lock()
	armed := f.armed
	f.mu.Unlock()
	if armed {
		return errors.New("index unavailable")
	}
	return f.NoteIndex.UpsertNotes(rows...)
}

func failingEnv(t *testing.T) (*engine.Engine, *failingIndex, string) {
	t.Helper()
	vaultDir, store := testutil.TestVault(t)
	fi := &failingIndex{NoteIndex: testutil.TestDB(t)}
	clock := testutil.NewClock(day1)
	e := engine.New(fi, store, engine.WithClock(clock.Now), engine.WithLogger(testutil.Logger()))
	return e, fi, vaultDir
}

func readVault(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[p] = string(data)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestTagMutationsRollBack(t *testing.T) {
	e, fi, vaultDir := failingEnv(t)
	ctx := context.Background()
	mustCreate(t, e, "one #a")
	mustCreate(t, e, "two #a #b")
	before := readVault(t, vaultDir)
	counts := tagCounts(t, e)

	fi.arm()
	if err := e.RenameTag(ctx, "a", "c"); err == nil {
		t.Fatal("rename succeeded with failing index")
	}
	if err := e.DeleteTag(ctx, "a"); err == nil {
		t.Fatal("delete succeeded with failing index")
	}

	after := readVault(t, vaultDir)
	if len(after) != len(before) {
		t.Fatalf("file set changed: %d -> %d", len(before), len(after))
	}
	for p, content := range before {
		if after[p] != content {
			t.Errorf("%s not restored:\n%s\nwant:\n%s", p, after[p], content)
		}
	}
	if got := tagCounts(t, e); got["a"] != counts["a"] || got["b"] != counts["b"] || got["c"] != 0 {
		t.Errorf("counts = %v, want %v", got, counts)
	}
}

func TestCreateRollsBackFile(t *testing.T) {
	e, fi, vaultDir := failingEnv(t)
	fi.arm()
	if _, err := e.Create(context.Background(), "doomed #x", ""); err == nil {
		t.Fatal("create succeeded with failing index")
	}
	if files := readVault(t, vaultDir); len(files) != 0 {
		t.Errorf("orphan files left: %v", files)
	}
}

func TestSavedQueries(t *testing.T) {
	env, _ := newEnv(t)
	ctx := context.Background()
	mustCreate(t, env.Engine, "call bob #work")

	if err := env.Engine.SaveQuery(ctx, "work", "#work"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.SaveQuery(ctx, "broken", "#work && "); !errors.Is(err, apperr.ErrSyntax) {
		t.Errorf("broken query saved: %v", err)
	}
	if err := env.Engine.SaveQuery(ctx, "bad name", "#work"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("bad name: %v", err)
	}

	list, _ := env.Engine.Queries(ctx)
	if len(list) != 1 || list[0] != (models.SavedQuery{Name: "work", Query: "#work"}) {
		t.Errorf("queries = %+v", list)
	}

	notes, err := env.Engine.RunQuery(ctx, "work")
	if err != nil || len(notes) != 1 {
		t.Fatalf("RunQuery = %v, %v", ids(notes), err)
	}

	// Runs reflect the live store.
	mustCreate(t, env.Engine, "another #work")
	notes, _ = env.Engine.RunQuery(ctx, "work")
	if len(notes) != 2 {
		t.Errorf("after create: %d notes", len(notes))
	}

	if _, err := env.Engine.RunQuery(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("run missing: %v", err)
	}
	if err := env.Engine.DeleteQuery(ctx, "work"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteQuery(ctx, "work"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("delete missing: %v", err)
	}
}

func TestObserverEvents(t *testing.T) {
	var mu sync.Mutex
	var events []string
	env, _ := newEnv(t, engine.WithObserver(func(kind, subject string) {
		mu.Lock()
		events = append(events, kind)
		mu.Unlock()
	}))
	ctx := context.Background()
	mustCreate(t, env.Engine, "x #a")
	_ = env.Engine.RenameTag(ctx, "a", "b")
	_ = env.Engine.DeleteTag(ctx, "b")
	_ = env.Engine.SaveQuery(ctx, "q", "x")
	_ = env.Engine.DeleteQuery(ctx, "q")

	want := []string{
		engine.EventNoteCreated, engine.EventTagRenamed, engine.EventTagDeleted,
		engine.EventQuerySaved, engine.EventQueryDeleted,
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestConcurrentCreates(t *testing.T) {
	env, _ := newEnv(t)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.Engine.Create(context.Background(), "parallel #load", ""); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if got := tagCounts(t, env.Engine)["load"]; got != 10 {
		t.Errorf("load count = %d, want 10", got)
	}
}
