package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"docaudit/internal/audit/domain"
	"docaudit/internal/security"
)

// mockAuditRepo implements repository.Repository for tests.
type mockAuditRepo struct {
	records  map[string]*domain.AuditRecord
	list     []*domain.AuditRecord
	err      error
	gets     int
	lastArgs struct {
		itemName, itemID string
		limit, offset    int32
	}
}

func (m *mockAuditRepo) Create(ctx context.Context, rec *domain.AuditRecord) error {
	return m.err
}

func (m *mockAuditRepo) GetByID(ctx context.Context, id string) (*domain.AuditRecord, error) {
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	return m.records[id], nil
}

func (m *mockAuditRepo) ListByItem(ctx context.Context, itemName, itemID string, limit, offset int32) ([]*domain.AuditRecord, error) {
	m.lastArgs.itemName, m.lastArgs.itemID = itemName, itemID
	m.lastArgs.limit, m.lastArgs.offset = limit, offset
	if m.err != nil {
		return nil, m.err
	}
	return m.list, nil
}

func sampleRecord() *domain.AuditRecord {
	return &domain.AuditRecord{
		ID:       "audit-1",
		ItemID:   "obj-1",
		ItemName: "TestObject",
		User:     "Jack",
		Changes: domain.ChangeMap{
			"name": domain.Edited("Lucky", "Unlucky"),
		},
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func serve(t *testing.T, h *Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	NewRouter(h, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, req)
	return w
}

func TestGetAudit(t *testing.T) {
	repo := &mockAuditRepo{records: map[string]*domain.AuditRecord{"audit-1": sampleRecord()}}
	w := serve(t, NewHandler(repo, nil), httptest.NewRequest(http.MethodGet, "/audits/audit-1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200: %s", w.Code, w.Body.String())
	}
	var got domain.AuditRecord
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "audit-1" || got.User != "Jack" {
		t.Errorf("record = %+v", got)
	}
	c := got.Changes["name"]
	if c.Type != domain.ChangeEdit || c.From != "Lucky" || c.To != "Unlucky" {
		t.Errorf("changes[name] = %+v", c)
	}
}

func TestGetAudit_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		repo     *mockAuditRepo
		wantCode int
	}{
		{"not found", &mockAuditRepo{}, http.StatusNotFound},
		{"repository error", &mockAuditRepo{err: errors.New("db down")}, http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(t, NewHandler(tc.repo, nil), httptest.NewRequest(http.MethodGet, "/audits/missing", nil))
			if w.Code != tc.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tc.wantCode)
			}
		})
	}
}

func TestListItemAudits(t *testing.T) {
	repo := &mockAuditRepo{list: []*domain.AuditRecord{sampleRecord()}}
	req := httptest.NewRequest(http.MethodGet, "/items/TestObject/obj-1/audits?limit=10&offset=5", nil)
	w := serve(t, NewHandler(repo, nil), req)

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200: %s", w.Code, w.Body.String())
	}
	if repo.lastArgs.itemName != "TestObject" || repo.lastArgs.itemID != "obj-1" {
		t.Errorf("item = %s/%s", repo.lastArgs.itemName, repo.lastArgs.itemID)
	}
	if repo.lastArgs.limit != 10 || repo.lastArgs.offset != 5 {
		t.Errorf("limit/offset = %d/%d, want 10/5", repo.lastArgs.limit, repo.lastArgs.offset)
	}
	var got listResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Audits) != 1 || got.Audits[0].ID != "audit-1" {
		t.Errorf("audits = %+v", got.Audits)
	}
}

func TestListItemAudits_DefaultsAndEmpty(t *testing.T) {
	repo := &mockAuditRepo{}
	w := serve(t, NewHandler(repo, nil), httptest.NewRequest(http.MethodGet, "/items/TestObject/obj-1/audits", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	if repo.lastArgs.limit != defaultLimit || repo.lastArgs.offset != 0 {
		t.Errorf("limit/offset = %d/%d, want %d/0", repo.lastArgs.limit, repo.lastArgs.offset, defaultLimit)
	}
	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if audits, ok := raw["audits"].([]any); !ok || len(audits) != 0 {
		t.Errorf("audits = %#v, want empty list", raw["audits"])
	}
}

func TestListItemAudits_BadPagination(t *testing.T) {
	for _, q := range []string{"limit=0", "limit=-1", "limit=501", "limit=abc", "offset=-1", "offset=x"} {
		t.Run(q, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/items/TestObject/obj-1/audits?"+q, nil)
			w := serve(t, NewHandler(&mockAuditRepo{}, nil), req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("code = %d, want 400", w.Code)
			}
		})
	}
}

func TestListItemAudits_RepositoryError(t *testing.T) {
	w := serve(t, NewHandler(&mockAuditRepo{err: errors.New("db down")}, nil),
		httptest.NewRequest(http.MethodGet, "/items/TestObject/obj-1/audits", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("code = %d, want 500", w.Code)
	}
}

func TestAuthentication(t *testing.T) {
	signer, err := security.NewTestSigner()
	if err != nil {
		t.Fatalf("NewTestSigner: %v", err)
	}
	valid, err := signer.Issue("Jill", "iss", "aud", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	testCases := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"lowercase scheme", "bearer " + valid, http.StatusOK},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockAuditRepo{records: map[string]*domain.AuditRecord{"audit-1": sampleRecord()}}
			req := httptest.NewRequest(http.MethodGet, "/audits/audit-1", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := serve(t, NewHandler(repo, signer.Verifier("iss", "aud")), req)
			if w.Code != tc.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tc.wantCode)
			}
			wantGets := 0
			if tc.wantCode == http.StatusOK {
				wantGets = 1
			}
			if repo.gets != wantGets {
				t.Errorf("repository reads = %d, want %d", repo.gets, wantGets)
			}
		})
	}
}

func TestHealthzIsPublic(t *testing.T) {
	signer, _ := security.NewTestSigner()
	w := serve(t, NewHandler(&mockAuditRepo{}, signer.Verifier("iss", "aud")),
		httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", w.Code)
	}
}
