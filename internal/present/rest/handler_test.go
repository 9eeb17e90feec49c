package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/teknolab/repute/internal/domain"
	"github.com/teknolab/repute/internal/usecase"
)

// --- mocks ---

var testCaps = domain.Caps{Base: 5, Gain: 250, Loss: -250}

type memRepo struct {
	mu      sync.Mutex
	nextID  int64
	entries []domain.LedgerEntry
	scores  map[string]int
	rules   map[string]domain.PermissionRule
}

func newMemRepo() *memRepo {
	return &memRepo{
		scores: make(map[string]int),
		rules:  make(map[string]domain.PermissionRule),
	}
}

func (m *memRepo) Record(ctx context.Context, kind domain.ActionKind, entry domain.LedgerEntry, asOf time.Time) (domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scores[entry.TargetUser]; !ok {
		m.scores[entry.TargetUser] = testCaps.Base
	}
	for _, existing := range m.entries {
		if existing.TargetUser != entry.TargetUser || existing.Kind != kind.ID {
			continue
		}
		if kind.UniquePerActor || (kind.UniquePerTarget && existing.Object == entry.Object) {
			return domain.LedgerEntry{}, domain.DuplicateActionError{Kind: kind.ID, User: entry.TargetUser}
		}
	}

	daySum := m.dailySumLocked(entry.TargetUser, asOf)
	applied := domain.Clip(testCaps, daySum, entry.RawValue)

	m.nextID++
	entry.ID = m.nextID
	entry.AppliedValue = applied
	entry.CreatedAt = asOf
	m.entries = append(m.entries, entry)
	m.scores[entry.TargetUser] += applied
	return entry, nil
}

func (m *memRepo) DailySum(ctx context.Context, user string, asOf time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailySumLocked(user, asOf), nil
}

func (m *memRepo) dailySumLocked(user string, asOf time.Time) int {
	start, end := domain.DayWindow(asOf)
	sum := 0
	for _, entry := range m.entries {
		if entry.TargetUser == user && !entry.CreatedAt.Before(start) && entry.CreatedAt.Before(end) {
			sum += entry.AppliedValue
		}
	}
	return sum
}

func (m *memRepo) GetOrCreate(ctx context.Context, user string) (domain.Reputation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scores[user]; !ok {
		m.scores[user] = testCaps.Base
	}
	return domain.Reputation{User: user, Score: m.scores[user]}, nil
}

func (m *memRepo) SetScore(ctx context.Context, user string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[user] = score
	return nil
}

func (m *memRepo) Get(ctx context.Context, name string) (domain.PermissionRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[name]
	if !ok {
		return domain.PermissionRule{}, domain.NotFoundError{Resource: "permission rule"}
	}
	return rule, nil
}

func (m *memRepo) Upsert(ctx context.Context, rule domain.PermissionRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.Name] = rule
	return nil
}

func (m *memRepo) List(ctx context.Context) ([]domain.PermissionRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PermissionRule, 0, len(m.rules))
	for _, rule := range m.rules {
		out = append(out, rule)
	}
	return out, nil
}

func newTestServer(t *testing.T) (*echo.Echo, *memRepo) {
	t.Helper()

	catalog, err := usecase.NewCatalog([]domain.ActionKind{
		{ID: "vote", PointValue: 10},
		{ID: "accepted_answer", PointValue: 100, UniquePerActor: true},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	repo := newMemRepo()
	ledger := usecase.NewLedgerUsecase(catalog, repo, nil, testCaps)
	reputation := usecase.NewReputationUsecase(repo, nil)
	permission := usecase.NewPermissionUsecase(repo, reputation)
	dispatcher := usecase.NewDispatcher(ledger)
	if err := dispatcher.Register("forum_vote", "vote", usecase.RuleHandler{}); err != nil {
		t.Fatalf("register handler: %v", err)
	}

	h := NewHandler(ledger, reputation, permission, dispatcher, nil)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, repo
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewBuffer(encoded)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// --- tests ---

func TestHandleRecord(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/actions", map[string]any{
		"actor":  "bob",
		"target": "alice",
		"kind":   "vote",
		"object": map[string]string{"type": "post", "id": "1"},
		"value":  100,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var entry domain.LedgerEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.AppliedValue != 100 || entry.TargetUser != "alice" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestHandleRecordUnknownAction(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/actions", map[string]any{
		"actor":  "bob",
		"target": "alice",
		"kind":   "bogus",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleRecordDuplicate(t *testing.T) {
	e, _ := newTestServer(t)

	body := map[string]any{
		"actor":  "bob",
		"target": "alice",
		"kind":   "accepted_answer",
		"object": map[string]string{"type": "answer", "id": "7"},
	}
	if rec := doJSON(t, e, http.MethodPost, "/api/v1/actions", body); rec.Code != http.StatusOK {
		t.Fatalf("first record: expected 200, got %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodPost, "/api/v1/actions", body); rec.Code != http.StatusConflict {
		t.Fatalf("second record: expected 409, got %d", rec.Code)
	}
}

func TestHandleRecordMissingFields(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/actions", map[string]any{"actor": "bob"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleGetScoreMaterializes(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/api/v1/users/alice/reputation", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var response struct {
		User  string `json:"user"`
		Score int    `json:"score"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.User != "alice" || response.Score != testCaps.Base {
		t.Fatalf("unexpected response %+v", response)
	}
}

func TestHandleSetScore(t *testing.T) {
	e, repo := newTestServer(t)

	rec := doJSON(t, e, http.MethodPut, "/api/v1/users/alice/reputation", map[string]any{"score": 9000})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if repo.scores["alice"] != 9000 {
		t.Fatalf("expected overridden score, got %d", repo.scores["alice"])
	}
}

func TestHandleDailyDelta(t *testing.T) {
	e, _ := newTestServer(t)

	doJSON(t, e, http.MethodPost, "/api/v1/actions", map[string]any{
		"actor": "bob", "target": "alice", "kind": "vote", "value": 100,
		"object": map[string]string{"type": "post", "id": "1"},
	})
	doJSON(t, e, http.MethodPost, "/api/v1/actions", map[string]any{
		"actor": "carol", "target": "alice", "kind": "vote", "value": 200,
		"object": map[string]string{"type": "post", "id": "2"},
	})

	rec := doJSON(t, e, http.MethodGet, "/api/v1/users/alice/reputation/daily", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var response struct {
		Delta int `json:"delta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.Delta != 250 {
		t.Fatalf("expected capped delta 250, got %d", response.Delta)
	}
}

func TestHandleDailyDeltaBadAsOf(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/api/v1/users/alice/reputation/daily?asOf=yesterday", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandlePermissionCheckFailOpen(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/api/v1/permissions/vote/check?user=alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var response struct {
		Allowed bool `json:"allowed"`
		Exists  bool `json:"exists"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !response.Allowed || response.Exists {
		t.Fatalf("expected fail-open allow for missing rule, got %+v", response)
	}
}

func TestHandleUpsertPermissionAndCheck(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodPut, "/api/v1/permissions/moderate", map[string]any{
		"requiredReputation": 1000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, e, http.MethodGet, "/api/v1/permissions/moderate/check?user=alice", nil)
	var response struct {
		Allowed bool `json:"allowed"`
		Exists  bool `json:"exists"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.Allowed || !response.Exists {
		t.Fatalf("expected denial below threshold, got %+v", response)
	}
}

func TestHandlePermissionsSnapshot(t *testing.T) {
	e, _ := newTestServer(t)

	doJSON(t, e, http.MethodPut, "/api/v1/permissions/vote", map[string]any{"requiredReputation": 1})
	doJSON(t, e, http.MethodPut, "/api/v1/permissions/moderate", map[string]any{"requiredReputation": 1000})

	rec := doJSON(t, e, http.MethodGet, "/api/v1/users/alice/permissions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var response struct {
		Permissions map[string]bool `json:"permissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !response.Permissions["vote"] || response.Permissions["moderate"] {
		t.Fatalf("unexpected snapshot %+v", response.Permissions)
	}
}

func TestHandleContentEvent(t *testing.T) {
	e, repo := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/events", map[string]any{
		"contentType":     "forum_vote",
		"objectID":        "42",
		"created":         true,
		"targetUser":      "alice",
		"originatingUser": "bob",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(repo.entries))
	}
}

func TestHandleContentEventDropped(t *testing.T) {
	e, repo := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/events", map[string]any{
		"contentType": "unknown_type",
		"created":     true,
		"targetUser":  "alice",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var response struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.Status != "dropped" {
		t.Fatalf("expected dropped, got %q", response.Status)
	}
	if len(repo.entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(repo.entries))
	}
}

func TestHandleRealtimeUnconfigured(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/realtime", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without redis, got %d", rec.Code)
	}
}
