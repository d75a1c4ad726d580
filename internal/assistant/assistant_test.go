package assistant

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"design-props-rag/internal/auth"
	"design-props-rag/internal/chat"
	"design-props-rag/internal/database"
	"design-props-rag/internal/extract"
	"design-props-rag/internal/models"
	"design-props-rag/internal/table"
)

type stubService struct {
	listCalls atomic.Int32
	tokens    sync.Map
	listErr   error
}

func (s *stubService) ListViewables(_ context.Context, _, token string) ([]models.Viewable, error) {
	s.listCalls.Add(1)
	s.tokens.Store(token, true)
	if s.listErr != nil {
		return nil, s.listErr
	}
	return []models.Viewable{{GUID: "g1", Role: "3d"}}, nil
}

func (s *stubService) FetchHierarchy(context.Context, string, string, string) (*models.Node, bool, error) {
	return &models.Node{ObjectID: 1, Children: []models.Node{{ObjectID: 2}, {ObjectID: 3}}}, true, nil
}

func (s *stubService) FetchAllProperties(context.Context, string, string, string) ([]models.PropertyRecord, bool, error) {
	return []models.PropertyRecord{
		{ObjectID: 2, Name: "Wall", Properties: map[string]map[string]models.Value{"Dimensions": {"Area": models.Text("12.5 m^2")}}},
		{ObjectID: 3, Name: "Door", Properties: map[string]map[string]models.Value{"Dimensions": {"Area": models.Text("2")}}},
	}, true, nil
}

func (s *stubService) QueryProperties(context.Context, string, string, models.PropertyQuery, int, int, string) (*models.PropertyPage, bool, error) {
	return nil, false, errors.New("not used")
}

type scriptedCompleter struct {
	mu        sync.Mutex
	grounding []string
}

func (c *scriptedCompleter) Complete(_ context.Context, transcript []models.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grounding = append(c.grounding, transcript[0].Text)
	return "answer " + transcript[len(transcript)-1].Text, nil
}

func newAssistant(svc *stubService, c chat.Completer) *Assistant {
	return &Assistant{
		Cache:       chat.NewCache(0, nil),
		Extractor:   &extract.Extractor{Service: svc},
		Completer:   c,
		Credentials: auth.Static("configured-token"),
		Table:       table.Config{Category: "Dimensions", Attributes: []string{"Area"}},
	}
}

func TestAnswerQuestion_ExtractsOncePerDesign(t *testing.T) {
	svc := &stubService{}
	c := &scriptedCompleter{}
	a := newAssistant(svc, c)
	ctx := context.Background()

	for _, q := range []string{"largest?", "smallest?"} {
		answer, err := a.AnswerQuestion(ctx, "urn:a", q, "caller-token")
		if err != nil {
			t.Fatalf("AnswerQuestion(%q): %v", q, err)
		}
		if answer != "answer "+q {
			t.Errorf("answer = %q", answer)
		}
	}
	if got := svc.listCalls.Load(); got != 1 {
		t.Errorf("extraction ran %d times, want 1", got)
	}
	if _, ok := svc.tokens.Load("caller-token"); !ok {
		t.Error("caller credential was not forwarded")
	}

	wantTable := "id,name,Area\n2,\"Wall\",12.5\n3,\"Door\",2"
	if !strings.Contains(c.grounding[0], wantTable) {
		t.Errorf("grounding does not contain table:\n%s", c.grounding[0])
	}

	transcript, ok := a.Transcript("urn:a")
	if !ok {
		t.Fatal("no transcript for urn:a")
	}
	var roles []models.Role
	for _, m := range transcript {
		roles = append(roles, m.Role)
	}
	want := []models.Role{models.RoleSystem, models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant}
	if diff := cmp.Diff(want, roles); diff != "" {
		t.Errorf("roles (-want +got):\n%s", diff)
	}
}

func TestAnswerQuestion_FallsBackToConfiguredCredentials(t *testing.T) {
	svc := &stubService{}
	a := newAssistant(svc, &scriptedCompleter{})
	if _, err := a.AnswerQuestion(context.Background(), "urn:a", "q", ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.tokens.Load("configured-token"); !ok {
		t.Error("configured credential was not used")
	}
}

func TestAnswerQuestion_NoCredentials(t *testing.T) {
	a := newAssistant(&stubService{}, &scriptedCompleter{})
	a.Credentials = nil
	_, err := a.AnswerQuestion(context.Background(), "urn:a", "q", "")
	if !errors.Is(err, auth.ErrNoCredentials) {
		t.Errorf("err = %v, want ErrNoCredentials", err)
	}
}

func TestAnswerQuestion_FailedExtractionIsRetried(t *testing.T) {
	svc := &stubService{listErr: errors.New("503")}
	a := newAssistant(svc, &scriptedCompleter{})
	ctx := context.Background()

	_, err := a.AnswerQuestion(ctx, "urn:a", "q", "tok")
	var initErr *chat.InitError
	if !errors.As(err, &initErr) || !extract.IsUpstream(err) {
		t.Fatalf("err = %v, want upstream InitError", err)
	}
	if _, ok := a.Transcript("urn:a"); ok {
		t.Fatal("failed design must not be cached")
	}

	svc.listErr = nil
	if _, err := a.AnswerQuestion(ctx, "urn:a", "q", "tok"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := svc.listCalls.Load(); got != 2 {
		t.Errorf("list calls = %d, want 2", got)
	}
}

func TestPropertyTable_UsesStoreAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	store, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "tables.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	svc := &stubService{}
	first := newAssistant(svc, &scriptedCompleter{})
	first.Store = store
	if _, err := first.AnswerQuestion(ctx, "urn:a", "q", "tok"); err != nil {
		t.Fatal(err)
	}

	// A new process: empty cache, same store.
	c := &scriptedCompleter{}
	second := newAssistant(svc, c)
	second.Store = store
	if _, err := second.AnswerQuestion(ctx, "urn:a", "q", "tok"); err != nil {
		t.Fatal(err)
	}
	if got := svc.listCalls.Load(); got != 1 {
		t.Errorf("extraction ran %d times, want 1", got)
	}
	if !strings.Contains(c.grounding[0], "2,\"Wall\",12.5") {
		t.Errorf("stored table not used for grounding:\n%s", c.grounding[0])
	}

	// A row cap invalidates the stored copy.
	third := newAssistant(svc, &scriptedCompleter{})
	third.Store = store
	third.Table.MaxRows = 1
	tbl, err := third.PropertyTable(ctx, "urn:a", "tok")
	if err != nil {
		t.Fatal(err)
	}
	if got := svc.listCalls.Load(); got != 2 {
		t.Errorf("after max_rows change extraction ran %d times, want 2", got)
	}
	if tbl.Len() != 1 {
		t.Errorf("rows = %d, want 1", tbl.Len())
	}

	// So does another category, even though the header is unchanged.
	fourth := newAssistant(svc, &scriptedCompleter{})
	fourth.Store = store
	fourth.Table.MaxRows = 1
	fourth.Table.Category = "Constraints"
	if _, err := fourth.PropertyTable(ctx, "urn:a", "tok"); err != nil {
		t.Fatal(err)
	}
	if got := svc.listCalls.Load(); got != 3 {
		t.Errorf("after category change extraction ran %d times, want 3", got)
	}
	stored, err := store.GetTable(ctx, "urn:a")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Category != "Constraints" || stored.MaxRows != 1 {
		t.Errorf("stored settings = %q/%d, want Constraints/1", stored.Category, stored.MaxRows)
	}

	// And different columns.
	fifth := newAssistant(svc, &scriptedCompleter{})
	fifth.Store = store
	fifth.Table = fourth.Table
	fifth.Table.Attributes = []string{"Area", "Volume"}
	if _, err := fifth.PropertyTable(ctx, "urn:a", "tok"); err != nil {
		t.Fatal(err)
	}
	if got := svc.listCalls.Load(); got != 4 {
		t.Errorf("after column change extraction ran %d times, want 4", got)
	}
}

func TestPropertyTable_SharesSessionTable(t *testing.T) {
	svc := &stubService{}
	a := newAssistant(svc, &scriptedCompleter{})
	ctx := context.Background()

	if _, err := a.AnswerQuestion(ctx, "urn:a", "q", "tok"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		tbl, err := a.PropertyTable(ctx, "urn:a", "tok")
		if err != nil {
			t.Fatal(err)
		}
		if tbl.Len() != 2 {
			t.Errorf("rows = %d, want 2", tbl.Len())
		}
	}
	if got := svc.listCalls.Load(); got != 1 {
		t.Errorf("extraction ran %d times, want 1", got)
	}

	// Asking for the table first seeds the session a question then uses.
	if _, err := a.PropertyTable(ctx, "urn:b", "tok"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.AnswerQuestion(ctx, "urn:b", "q", "tok"); err != nil {
		t.Fatal(err)
	}
	if got := svc.listCalls.Load(); got != 2 {
		t.Errorf("extraction ran %d times, want 2", got)
	}
}

func TestBuildTable_RefreshReseedsSession(t *testing.T) {
	svc := &stubService{}
	a := newAssistant(svc, &scriptedCompleter{})
	ctx := context.Background()

	if _, err := a.AnswerQuestion(ctx, "urn:a", "q", "tok"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.BuildTable(ctx, "urn:a", "tok", false); err != nil {
		t.Fatal(err)
	}
	if got := svc.listCalls.Load(); got != 1 {
		t.Fatalf("extraction ran %d times, want 1", got)
	}

	if _, err := a.BuildTable(ctx, "urn:a", "tok", true); err != nil {
		t.Fatal(err)
	}
	if got := svc.listCalls.Load(); got != 2 {
		t.Errorf("refresh: extraction ran %d times, want 2", got)
	}
	if _, ok := a.Transcript("urn:a"); ok {
		t.Error("refresh must drop the cached session")
	}
}

func TestAnswerQuestion_BlankQuestionSkipsExtraction(t *testing.T) {
	svc := &stubService{}
	a := newAssistant(svc, &scriptedCompleter{})

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := a.AnswerQuestion(context.Background(), "urn:a", q, "tok")
		if !errors.Is(err, chat.ErrEmptyQuestion) {
			t.Errorf("AnswerQuestion(%q) err = %v, want ErrEmptyQuestion", q, err)
		}
	}
	if got := svc.listCalls.Load(); got != 0 {
		t.Errorf("extraction ran %d times, want 0", got)
	}
	if _, ok := a.Transcript("urn:a"); ok {
		t.Error("blank question must not create a session")
	}
}
