package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"afropedia/api/internal/auth"
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func newAPIClient(t *testing.T) (*apiClient, *harness) {
	t.Helper()
	h := newHarness(t)
	server := NewHTTPServer(h.svc, testSecret, "*", nil)
	return &apiClient{t: t, handler: server.Handler()}, h
}

func tokenFor(t *testing.T, who auth.Identity) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(testSecret), auth.Claims{
		Sub:  who.UserID,
		Name: who.Name,
		Role: string(who.Role),
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return token
}

// do sends a request as who and decodes the JSON response into a map.
func (c *apiClient) do(who *auth.Identity, method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var payload *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(encoded)
	} else {
		payload = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, payload)
	if who != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(c.t, *who))
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)

	var response map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
			c.t.Fatalf("%s %s: decode response: %v (%s)", method, path, err, rr.Body.String())
		}
	}
	return rr.Code, response
}

func (c *apiClient) expect(who *auth.Identity, method, path string, body any, status int) map[string]any {
	c.t.Helper()
	code, response := c.do(who, method, path, body)
	if code != status {
		c.t.Fatalf("%s %s: expected status %d, got %d (%v)", method, path, status, code, response)
	}
	return response
}

func idOf(t *testing.T, object any) int64 {
	t.Helper()
	fields, ok := object.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %T", object)
	}
	id, ok := fields["id"].(float64)
	if !ok {
		t.Fatalf("expected numeric id, got %v", fields["id"])
	}
	return int64(id)
}

func TestRequestsWithoutValidTokenAreUnauthorized(t *testing.T) {
	client, _ := newAPIClient(t)

	code, response := client.do(nil, http.MethodGet, "/api/documents/1", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if response["code"] != "UNAUTHORIZED" {
		t.Errorf("expected code UNAUTHORIZED, got %v", response["code"])
	}

	req := httptest.NewRequest(http.MethodGet, "/api/documents/1", nil)
	req.Header.Set("Authorization", "Bearer not.a-token")
	rr := httptest.NewRecorder()
	client.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with forged token, got %d", rr.Code)
	}

	expired, err := auth.IssueToken([]byte(testSecret), auth.Claims{Sub: "u-1", Role: "user", Exp: time.Now().Add(-time.Minute).Unix()})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/documents/1", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rr = httptest.NewRecorder()
	client.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with expired token, got %d", rr.Code)
	}
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	client, _ := newAPIClient(t)

	response := client.expect(&author, http.MethodGet, "/api/documents/999", nil, http.StatusNotFound)
	if response["code"] != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %v", response["code"])
	}

	response = client.expect(&author, http.MethodPost, "/api/documents", map[string]any{"title": ""}, http.StatusUnprocessableEntity)
	if response["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %v", response["code"])
	}
	details, _ := response["details"].(map[string]any)
	if details["field"] != "title" {
		t.Errorf("expected field detail title, got %v", response["details"])
	}

	client.expect(&author, http.MethodGet, "/api/flags", nil, http.StatusForbidden)
	client.expect(&author, http.MethodGet, "/api/documents/abc", nil, http.StatusBadRequest)
	client.expect(&author, http.MethodGet, "/api/nowhere", nil, http.StatusNotFound)

	req := httptest.NewRequest(http.MethodPost, "/api/documents", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, author))
	rr := httptest.NewRecorder()
	client.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rr.Code)
	}
}

func TestReviewFlowOverHTTP(t *testing.T) {
	client, h := newAPIClient(t)

	doc := client.expect(&author, http.MethodPost, "/api/documents", map[string]any{"title": "Lalibela"}, http.StatusCreated)
	docID := idOf(t, doc)
	rev := client.expect(&author, http.MethodPost, fmt.Sprintf("/api/documents/%d/revisions", docID),
		map[string]any{"content": "Rock-hewn churches.", "priority": "high"}, http.StatusCreated)
	revID := idOf(t, rev)
	if rev["status"] != "pending" {
		t.Fatalf("expected pending revision, got %v", rev["status"])
	}

	queue := client.expect(&moderator, http.MethodGet, "/api/queue", nil, http.StatusOK)
	items, _ := queue["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one queue item, got %v", queue["items"])
	}

	response := client.expect(&author, http.MethodPost, fmt.Sprintf("/api/revisions/%d/reviews", revID), map[string]any{}, http.StatusForbidden)
	if response["code"] != "FORBIDDEN" {
		t.Errorf("expected FORBIDDEN for self review, got %v", response["code"])
	}

	var last map[string]any
	for i := 1; i <= 5; i++ {
		who := reviewer(i)
		created := client.expect(&who, http.MethodPost, fmt.Sprintf("/api/revisions/%d/reviews", revID), map[string]any{}, http.StatusCreated)
		reviewID := idOf(t, created)
		last = client.expect(&who, http.MethodPost, fmt.Sprintf("/api/reviews/%d/complete", reviewID),
			map[string]any{"status": "approved", "overallScore": 4}, http.StatusOK)
	}
	if last["revisionStatus"] != "approved" || last["head"] != "advanced" {
		t.Fatalf("expected fifth approval to publish, got %v", last)
	}
	outcome, _ := last["consensus"].(map[string]any)
	if outcome["status"] != "approved" || outcome["approvedCount"] != float64(5) {
		t.Errorf("unexpected consensus %v", outcome)
	}

	who := reviewer(6)
	response = client.expect(&who, http.MethodPost, fmt.Sprintf("/api/revisions/%d/reviews", revID), map[string]any{}, http.StatusConflict)
	if response["code"] != CodeRevisionDecided {
		t.Errorf("expected %s, got %v", CodeRevisionDecided, response["code"])
	}

	got := client.expect(&reader, http.MethodGet, fmt.Sprintf("/api/documents/%d", docID), nil, http.StatusOK)
	document, _ := got["document"].(map[string]any)
	if document["headRevisionId"] != float64(revID) || document["status"] != "approved" {
		t.Errorf("expected published document, got %v", document)
	}

	consensusView := client.expect(&reader, http.MethodGet, fmt.Sprintf("/api/revisions/%d/consensus", revID), nil, http.StatusOK)
	if consensusView["revisionStatus"] != "approved" {
		t.Errorf("expected approved consensus view, got %v", consensusView)
	}

	diffView := client.expect(&reader, http.MethodGet, fmt.Sprintf("/api/revisions/%d/diff", revID), nil, http.StatusOK)
	if diffView["isFirstRevision"] != true {
		t.Errorf("expected first revision diff, got %v", diffView["isFirstRevision"])
	}

	metricsView := client.expect(&who, http.MethodGet, "/api/reviewers/reviewer-1/metrics", nil, http.StatusForbidden)
	if metricsView["code"] != "FORBIDDEN" {
		t.Errorf("expected FORBIDDEN, got %v", metricsView["code"])
	}
	first := reviewer(1)
	mine := client.expect(&first, http.MethodGet, "/api/reviewers/reviewer-1/metrics", nil, http.StatusOK)
	if mine["completedReviews"] != float64(1) {
		t.Errorf("expected one completed review, got %v", mine)
	}

	h.fanout.Wait()
	if n := h.countEvents("head.advanced"); n != 1 {
		t.Errorf("expected one head.advanced event, got %d", n)
	}
}

func TestHeadConflictsOverHTTP(t *testing.T) {
	client, _ := newAPIClient(t)

	doc := client.expect(&author, http.MethodPost, "/api/documents", map[string]any{"title": "Meroe"}, http.StatusCreated)
	docID := idOf(t, doc)
	older := idOf(t, client.expect(&author, http.MethodPost, fmt.Sprintf("/api/documents/%d/revisions", docID), map[string]any{"content": "v1"}, http.StatusCreated))
	newer := idOf(t, client.expect(&author, http.MethodPost, fmt.Sprintf("/api/documents/%d/revisions", docID), map[string]any{"content": "v2"}, http.StatusCreated))

	response := client.expect(&admin, http.MethodPost, fmt.Sprintf("/api/documents/%d/head", docID), map[string]any{"revisionId": older}, http.StatusConflict)
	if response["code"] != CodeRevisionNotApproved {
		t.Errorf("expected %s, got %v", CodeRevisionNotApproved, response["code"])
	}

	client.expect(&moderator, http.MethodPost, fmt.Sprintf("/api/revisions/%d/approve", newer), map[string]any{}, http.StatusOK)
	stale := client.expect(&moderator, http.MethodPost, fmt.Sprintf("/api/revisions/%d/approve", older), map[string]any{}, http.StatusOK)
	if stale["head"] != "superseded" {
		t.Errorf("expected superseded approval, got %v", stale["head"])
	}

	response = client.expect(&admin, http.MethodPost, fmt.Sprintf("/api/documents/%d/head", docID), map[string]any{"revisionId": older}, http.StatusConflict)
	if response["code"] != CodeHeadStale {
		t.Errorf("expected %s, got %v", CodeHeadStale, response["code"])
	}

	response = client.expect(&moderator, http.MethodPost, fmt.Sprintf("/api/revisions/%d/reject", older), map[string]any{"reason": "late"}, http.StatusConflict)
	if response["code"] != CodeRevisionDecided {
		t.Errorf("expected %s, got %v", CodeRevisionDecided, response["code"])
	}

	revisions := client.expect(&reader, http.MethodGet, fmt.Sprintf("/api/documents/%d/revisions?limit=1", docID), nil, http.StatusOK)
	list, _ := revisions["revisions"].([]any)
	if len(list) != 1 || idOf(t, list[0]) != newer {
		t.Errorf("expected newest revision first, got %v", revisions["revisions"])
	}
}

func TestPublishedHistoryWithoutArchive(t *testing.T) {
	client, _ := newAPIClient(t)

	doc := client.expect(&author, http.MethodPost, "/api/documents", map[string]any{"title": "Songhai"}, http.StatusCreated)
	response := client.expect(&reader, http.MethodGet, fmt.Sprintf("/api/documents/%d/published", idOf(t, doc)), nil, http.StatusBadGateway)
	if response["code"] != "ARCHIVE_UNAVAILABLE" {
		t.Errorf("expected ARCHIVE_UNAVAILABLE, got %v", response["code"])
	}
}
