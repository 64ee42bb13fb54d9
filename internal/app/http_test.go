package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"decisio/api/internal/decision"
	"decisio/api/internal/diff"
	"decisio/api/internal/records"
	"decisio/api/internal/store"
)

func newTestServer(recs *fakeRecords) http.Handler {
	svc, _, _ := newTestService(recs)
	return NewHTTPServer(svc, "*").Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(&fakeRecords{})

	rr := doJSON(t, handler, http.MethodGet, "/api/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestReadyWithoutRemoteStore(t *testing.T) {
	handler := newTestServer(&fakeRecords{})

	rr := doJSON(t, handler, http.MethodGet, "/api/ready", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	payload := decodeResponse(t, rr)
	if payload["status"] != "ready" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestCreateRecordEndpoint(t *testing.T) {
	handler := newTestServer(&fakeRecords{})

	rr := doJSON(t, handler, http.MethodPost, "/api/records", map[string]any{
		"question": "Which laptop should I buy?",
		"options": []map[string]any{
			{"id": "opt-1", "kind": "text", "label": "Laptop A"},
			{"id": "opt-2", "kind": "text", "label": "Laptop B"},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	if payload["id"] != "dec-test" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestCreateRecordValidationError(t *testing.T) {
	handler := newTestServer(&fakeRecords{})

	rr := doJSON(t, handler, http.MethodPost, "/api/records", map[string]any{
		"question": "hm",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	payload := decodeResponse(t, rr)
	if payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error payload: %+v", payload)
	}
}

func TestListRecordsWorksWithoutSession(t *testing.T) {
	handler := newTestServer(&fakeRecords{records: []decision.Record{analyzedRecord("dec-1")}})

	rr := doJSON(t, handler, http.MethodGet, "/api/records", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	payload := decodeResponse(t, rr)
	if payload["scope"] != "local" {
		t.Fatalf("expected local scope, got %+v", payload["scope"])
	}
	items, ok := payload["records"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("unexpected records: %+v", payload["records"])
	}
}

func TestGetRecordNotFound(t *testing.T) {
	handler := newTestServer(&fakeRecords{})

	rr := doJSON(t, handler, http.MethodGet, "/api/records/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	payload := decodeResponse(t, rr)
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("unexpected error payload: %+v", payload)
	}
}

func TestClearRecordsMapsBulkDeleteUnsupported(t *testing.T) {
	handler := newTestServer(&fakeRecords{
		clearAllFn: func(context.Context) error { return store.ErrBulkDeleteUnsupported },
	})

	rr := doJSON(t, handler, http.MethodDelete, "/api/records", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	payload := decodeResponse(t, rr)
	if payload["code"] != "BULK_DELETE_UNSUPPORTED" {
		t.Fatalf("unexpected error payload: %+v", payload)
	}
}

func TestRefineMapsScopeChanged(t *testing.T) {
	handler := newTestServer(&fakeRecords{
		refineFn: func(context.Context, string, string) (decision.Record, diff.View, error) {
			return decision.Record{}, diff.View{}, fmt.Errorf("refine record: %w", records.ErrScopeChanged)
		},
	})

	rr := doJSON(t, handler, http.MethodPost, "/api/records/dec-1/refine", map[string]any{
		"instruction": "Weigh price higher",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	payload := decodeResponse(t, rr)
	if payload["code"] != "SCOPE_CHANGED" {
		t.Fatalf("unexpected error payload: %+v", payload)
	}
}

func TestTimelineEndpoint(t *testing.T) {
	handler := newTestServer(&fakeRecords{records: []decision.Record{analyzedRecord("dec-1")}})

	rr := doJSON(t, handler, http.MethodGet, "/api/records/dec-1/timeline", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	payload := decodeResponse(t, rr)
	versions, ok := payload["versions"].([]any)
	if !ok || len(versions) != 1 {
		t.Fatalf("unexpected versions: %+v", payload["versions"])
	}
}

func TestDiffRejectsNonIntegerParams(t *testing.T) {
	handler := newTestServer(&fakeRecords{records: []decision.Record{analyzedRecord("dec-1")}})

	rr := doJSON(t, handler, http.MethodGet, "/api/records/dec-1/diff?from=zero&to=1", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
}

func TestDiffMapsVersionRange(t *testing.T) {
	handler := newTestServer(&fakeRecords{records: []decision.Record{analyzedRecord("dec-1")}})

	rr := doJSON(t, handler, http.MethodGet, "/api/records/dec-1/diff?from=0&to=9", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	payload := decodeResponse(t, rr)
	if payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error payload: %+v", payload)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	handler := newTestServer(&fakeRecords{records: []decision.Record{analyzedRecord("dec-1")}})

	rr := doJSON(t, handler, http.MethodGet, "/api/records/dec-1/export?format=odt", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
}

func TestArchiveHistoryEndpoint(t *testing.T) {
	handler := newTestServer(&fakeRecords{records: []decision.Record{analyzedRecord("dec-1")}})

	rr := doJSON(t, handler, http.MethodGet, "/api/records/dec-1/archive", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	payload := decodeResponse(t, rr)
	commits, ok := payload["commits"].([]any)
	if !ok || len(commits) != 1 {
		t.Fatalf("unexpected commits: %+v", payload["commits"])
	}
}

func TestFeedbackRequiresSession(t *testing.T) {
	handler := newTestServer(&fakeRecords{})

	rr := doJSON(t, handler, http.MethodPost, "/api/feedback", map[string]any{
		"message": "It broke",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestSessionEndpointWithoutToken(t *testing.T) {
	handler := newTestServer(&fakeRecords{})

	rr := doJSON(t, handler, http.MethodGet, "/api/session", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	payload := decodeResponse(t, rr)
	if payload["authenticated"] != false {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestSessionEndpointWithToken(t *testing.T) {
	recs := &fakeRecords{}
	svc, _, _ := newTestService(recs)
	handler := NewHTTPServer(svc, "*").Handler()

	session, err := svc.issueSession(context.Background(), store.User{
		ID:          "user-1",
		DisplayName: "Avery",
		Email:       "avery@example.com",
	})
	if err != nil {
		t.Fatalf("issueSession() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	payload := decodeResponse(t, rr)
	if payload["authenticated"] != true || payload["userName"] != "Avery" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestAuthRoutesUnavailableWithoutRemoteStore(t *testing.T) {
	handler := newTestServer(&fakeRecords{})

	rr := doJSON(t, handler, http.MethodPost, "/api/auth/signin", map[string]any{
		"email":    "avery@example.com",
		"password": "secret",
	})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	payload := decodeResponse(t, rr)
	if payload["code"] != "AUTH_UNAVAILABLE" {
		t.Fatalf("unexpected error payload: %+v", payload)
	}
}

func TestSearchRejectsNonIntegerLimit(t *testing.T) {
	handler := newTestServer(&fakeRecords{})

	rr := doJSON(t, handler, http.MethodGet, "/api/search?q=laptop&limit=many", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	handler := newTestServer(&fakeRecords{})

	rr := doJSON(t, handler, http.MethodGet, "/api/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestServer(&fakeRecords{})

	rr := doJSON(t, handler, http.MethodOptions, "/api/records", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected CORS origin %q", got)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Fatal("expected DELETE in allowed methods")
	}
}
