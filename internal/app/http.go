package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"afropedia/api/internal/auth"
	"afropedia/api/internal/metrics"
)

type HTTPServer struct {
	service     *Service
	tokenSecret []byte
	corsOrigin  string
	log         *zap.Logger
}

func NewHTTPServer(service *Service, tokenSecret, corsOrigin string, log *zap.Logger) *HTTPServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPServer{service: service, tokenSecret: []byte(tokenSecret), corsOrigin: corsOrigin, log: log}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" {
		metrics.Handler().ServeHTTP(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}

	actor, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	switch parts[1] {
	case "documents":
		s.handleDocuments(w, r, actor, parts)
	case "revisions":
		s.handleRevisions(w, r, actor, parts)
	case "queue":
		s.handleQueue(w, r, actor, parts)
	case "assignments":
		s.handleAssignments(w, r, actor, parts)
	case "reviews":
		s.handleReviews(w, r, actor, parts)
	case "comments":
		s.handleComments(w, r, actor, parts)
	case "flags":
		s.handleFlags(w, r, actor, parts)
	case "moderation":
		s.handleModeration(w, r, actor, parts)
	case "reviewers":
		s.handleReviewers(w, r, actor, parts)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, actor auth.Identity, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodPost {
		var body struct {
			Title string `json:"title"`
		}
		if !readBody(w, r, &body) {
			return
		}
		doc, err := s.service.CreateDocument(r.Context(), actor, body.Title)
		respond(w, http.StatusCreated, doc, err)
		return
	}
	if len(parts) < 3 {
		notRouted(w)
		return
	}
	documentID, ok := pathID(w, parts[2])
	if !ok {
		return
	}

	switch {
	case len(parts) == 3 && r.Method == http.MethodGet:
		doc, err := s.service.GetDocument(r.Context(), actor, documentID)
		respond(w, http.StatusOK, map[string]any{"document": doc}, err)

	case len(parts) == 4 && parts[3] == "revisions" && r.Method == http.MethodPost:
		var body RevisionInput
		if !readBody(w, r, &body) {
			return
		}
		rev, err := s.service.CreateRevision(r.Context(), actor, documentID, body)
		respond(w, http.StatusCreated, rev, err)

	case len(parts) == 4 && parts[3] == "revisions" && r.Method == http.MethodGet:
		limit, offset := pagination(r)
		revisions, err := s.service.ListRevisions(r.Context(), actor, documentID, limit, offset)
		respond(w, http.StatusOK, map[string]any{"revisions": revisions}, err)

	case len(parts) == 4 && parts[3] == "head" && r.Method == http.MethodPost:
		var body struct {
			RevisionID int64 `json:"revisionId"`
		}
		if !readBody(w, r, &body) {
			return
		}
		head, err := s.service.AdvanceHead(r.Context(), actor, documentID, body.RevisionID)
		respond(w, http.StatusOK, head, err)

	case len(parts) == 4 && parts[3] == "published" && r.Method == http.MethodGet:
		limit, _ := pagination(r)
		history, err := s.service.PublishedHistory(r.Context(), actor, documentID, limit)
		respond(w, http.StatusOK, map[string]any{"history": history}, err)

	case len(parts) == 5 && parts[3] == "published" && r.Method == http.MethodGet:
		content, err := s.service.PublishedContent(r.Context(), actor, documentID, parts[4])
		respond(w, http.StatusOK, content, err)

	default:
		notRouted(w)
	}
}

func (s *HTTPServer) handleRevisions(w http.ResponseWriter, r *http.Request, actor auth.Identity, parts []string) {
	if len(parts) < 3 {
		notRouted(w)
		return
	}
	revisionID, ok := pathID(w, parts[2])
	if !ok {
		return
	}

	if len(parts) == 3 && r.Method == http.MethodGet {
		rev, err := s.service.GetRevision(r.Context(), actor, revisionID)
		respond(w, http.StatusOK, rev, err)
		return
	}
	if len(parts) != 4 {
		notRouted(w)
		return
	}

	switch action := parts[3]; {
	case action == "diff" && r.Method == http.MethodGet:
		result, err := s.service.GetDiff(r.Context(), actor, revisionID)
		respond(w, http.StatusOK, result, err)

	case action == "consensus" && r.Method == http.MethodGet:
		result, err := s.service.GetConsensus(r.Context(), actor, revisionID)
		respond(w, http.StatusOK, result, err)

	case action == "reviews" && r.Method == http.MethodGet:
		reviews, err := s.service.ReviewsForRevision(r.Context(), actor, revisionID)
		respond(w, http.StatusOK, map[string]any{"reviews": reviews}, err)

	case action == "reviews" && r.Method == http.MethodPost:
		var body struct {
			Anonymous bool `json:"isAnonymous"`
		}
		if !readBody(w, r, &body) {
			return
		}
		created, err := s.service.CreateReview(r.Context(), actor, revisionID, body.Anonymous)
		respond(w, http.StatusCreated, created, err)

	case (action == "approve" || action == "reject" || action == "request-changes") && r.Method == http.MethodPost:
		var body struct {
			Reason string `json:"reason"`
		}
		if !readBody(w, r, &body) {
			return
		}
		var (
			result DecisionView
			err    error
		)
		switch action {
		case "approve":
			result, err = s.service.ApproveRevision(r.Context(), actor, revisionID, body.Reason)
		case "reject":
			result, err = s.service.RejectRevision(r.Context(), actor, revisionID, body.Reason)
		default:
			result, err = s.service.RequestChanges(r.Context(), actor, revisionID, body.Reason)
		}
		respond(w, http.StatusOK, result, err)

	default:
		notRouted(w)
	}
}

func (s *HTTPServer) handleQueue(w http.ResponseWriter, r *http.Request, actor auth.Identity, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			limit, offset := pagination(r)
			query := r.URL.Query()
			items, err := s.service.ListQueue(r.Context(), actor, QueueQuery{
				Status:      strings.TrimSpace(query.Get("status")),
				ContentType: strings.TrimSpace(query.Get("contentType")),
				Limit:       limit,
				Offset:      offset,
			})
			respond(w, http.StatusOK, map[string]any{"items": items}, err)
		case http.MethodPost:
			var body SubmitInput
			if !readBody(w, r, &body) {
				return
			}
			item, err := s.service.Submit(r.Context(), actor, body)
			respond(w, http.StatusCreated, item, err)
		default:
			notRouted(w)
		}
		return
	}
	if len(parts) != 4 || r.Method != http.MethodPost {
		notRouted(w)
		return
	}
	itemID, ok := pathID(w, parts[2])
	if !ok {
		return
	}

	switch parts[3] {
	case "assign":
		var body struct {
			AssigneeID string `json:"assigneeId"`
		}
		if !readBody(w, r, &body) {
			return
		}
		item, err := s.service.AssignQueueItem(r.Context(), actor, itemID, body.AssigneeID)
		respond(w, http.StatusOK, item, err)
	case "close":
		var body struct {
			Verdict string `json:"verdict"`
			Reason  string `json:"reason"`
		}
		if !readBody(w, r, &body) {
			return
		}
		item, err := s.service.CloseQueueItem(r.Context(), actor, itemID, body.Verdict, body.Reason)
		respond(w, http.StatusOK, item, err)
	default:
		notRouted(w)
	}
}

func (s *HTTPServer) handleAssignments(w http.ResponseWriter, r *http.Request, actor auth.Identity, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			limit, _ := pagination(r)
			query := r.URL.Query()
			items, err := s.service.ListAssignments(r.Context(), actor,
				strings.TrimSpace(query.Get("assigneeId")), strings.TrimSpace(query.Get("status")), limit)
			respond(w, http.StatusOK, map[string]any{"assignments": items}, err)
		case http.MethodPost:
			var body AssignmentInput
			if !readBody(w, r, &body) {
				return
			}
			created, err := s.service.AssignReviewer(r.Context(), actor, body)
			respond(w, http.StatusCreated, created, err)
		default:
			notRouted(w)
		}
		return
	}
	if len(parts) != 4 || r.Method != http.MethodPost {
		notRouted(w)
		return
	}
	assignmentID, ok := pathID(w, parts[2])
	if !ok {
		return
	}

	switch parts[3] {
	case "accept":
		updated, err := s.service.AcceptAssignment(r.Context(), actor, assignmentID)
		respond(w, http.StatusOK, updated, err)
	case "decline":
		var body struct {
			Reason string `json:"reason"`
		}
		if !readBody(w, r, &body) {
			return
		}
		updated, err := s.service.DeclineAssignment(r.Context(), actor, assignmentID, body.Reason)
		respond(w, http.StatusOK, updated, err)
	default:
		notRouted(w)
	}
}

func (s *HTTPServer) handleReviews(w http.ResponseWriter, r *http.Request, actor auth.Identity, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		limit, offset := pagination(r)
		query := r.URL.Query()
		reviews, err := s.service.ReviewsByReviewer(r.Context(), actor,
			strings.TrimSpace(query.Get("reviewerId")), strings.TrimSpace(query.Get("status")), limit, offset)
		respond(w, http.StatusOK, map[string]any{"reviews": reviews}, err)
		return
	}
	if len(parts) < 3 {
		notRouted(w)
		return
	}
	reviewID, ok := pathID(w, parts[2])
	if !ok {
		return
	}

	if len(parts) == 3 && r.Method == http.MethodGet {
		result, err := s.service.GetReview(r.Context(), actor, reviewID)
		respond(w, http.StatusOK, result, err)
		return
	}
	if len(parts) != 4 {
		notRouted(w)
		return
	}

	switch action := parts[3]; {
	case action == "comments" && r.Method == http.MethodGet:
		comments, err := s.service.ListComments(r.Context(), actor, reviewID)
		respond(w, http.StatusOK, map[string]any{"comments": comments}, err)

	case action == "comments" && r.Method == http.MethodPost:
		var body CommentInput
		if !readBody(w, r, &body) {
			return
		}
		created, err := s.service.AddComment(r.Context(), actor, reviewID, body)
		respond(w, http.StatusCreated, created, err)

	case action == "start" && r.Method == http.MethodPost:
		result, err := s.service.StartReview(r.Context(), actor, reviewID)
		respond(w, http.StatusOK, result, err)

	case action == "complete" && r.Method == http.MethodPost:
		var body CompletionInput
		if !readBody(w, r, &body) {
			return
		}
		result, err := s.service.CompleteReview(r.Context(), actor, reviewID, body)
		respond(w, http.StatusOK, result, err)

	case (action == "escalate" || action == "conflict") && r.Method == http.MethodPost:
		var body struct {
			Reason string `json:"reason"`
		}
		if !readBody(w, r, &body) {
			return
		}
		var (
			result ReviewView
			err    error
		)
		if action == "escalate" {
			result, err = s.service.EscalateReview(r.Context(), actor, reviewID, body.Reason)
		} else {
			result, err = s.service.ReportConflict(r.Context(), actor, reviewID, body.Reason)
		}
		respond(w, http.StatusOK, result, err)

	default:
		notRouted(w)
	}
}

func (s *HTTPServer) handleComments(w http.ResponseWriter, r *http.Request, actor auth.Identity, parts []string) {
	if len(parts) != 4 || parts[3] != "resolve" || r.Method != http.MethodPost {
		notRouted(w)
		return
	}
	commentID, ok := pathID(w, parts[2])
	if !ok {
		return
	}
	comment, err := s.service.ResolveComment(r.Context(), actor, commentID)
	respond(w, http.StatusOK, comment, err)
}

func (s *HTTPServer) handleFlags(w http.ResponseWriter, r *http.Request, actor auth.Identity, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			limit, offset := pagination(r)
			flags, err := s.service.ListFlags(r.Context(), actor, strings.TrimSpace(r.URL.Query().Get("status")), limit, offset)
			respond(w, http.StatusOK, map[string]any{"flags": flags}, err)
		case http.MethodPost:
			var body FlagInput
			if !readBody(w, r, &body) {
				return
			}
			flag, err := s.service.RaiseFlag(r.Context(), actor, body)
			respond(w, http.StatusCreated, flag, err)
		default:
			notRouted(w)
		}
		return
	}
	if len(parts) != 4 || parts[3] != "resolve" || r.Method != http.MethodPost {
		notRouted(w)
		return
	}
	flagID, ok := pathID(w, parts[2])
	if !ok {
		return
	}
	var body struct {
		Note string `json:"note"`
	}
	if !readBody(w, r, &body) {
		return
	}
	flag, err := s.service.ResolveFlag(r.Context(), actor, flagID, body.Note)
	respond(w, http.StatusOK, flag, err)
}

func (s *HTTPServer) handleModeration(w http.ResponseWriter, r *http.Request, actor auth.Identity, parts []string) {
	if len(parts) != 3 || parts[2] != "actions" || r.Method != http.MethodGet {
		notRouted(w)
		return
	}
	query := r.URL.Query()
	limit, _ := pagination(r)
	var contentID int64
	if raw := strings.TrimSpace(query.Get("contentId")); raw != "" {
		parsed, ok := pathID(w, raw)
		if !ok {
			return
		}
		contentID = parsed
	}
	actions, err := s.service.ListModerationActions(r.Context(), actor, ActionQuery{
		ContentType: strings.TrimSpace(query.Get("contentType")),
		ContentID:   contentID,
		Limit:       limit,
	})
	respond(w, http.StatusOK, map[string]any{"actions": actions}, err)
}

func (s *HTTPServer) handleReviewers(w http.ResponseWriter, r *http.Request, actor auth.Identity, parts []string) {
	if len(parts) != 4 || parts[3] != "metrics" || r.Method != http.MethodGet {
		notRouted(w)
		return
	}
	result, err := s.service.ReviewerMetrics(r.Context(), actor, parts[2])
	respond(w, http.StatusOK, result, err)
}

func (s *HTTPServer) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return auth.Identity{}, false
	}
	identity, err := auth.Verify(s.tokenSecret, token)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return auth.Identity{}, false
	}
	return identity, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		defer func() {
			if recovered := recover(); recovered != nil {
				s.log.Error("handler panic", zap.String("request_id", requestID), zap.Any("panic", recovered))
				writeError(writer, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
			}
			elapsed := time.Since(started)
			metrics.HTTPDuration.WithLabelValues(r.Method, strconv.Itoa(writer.status)).Observe(elapsed.Seconds())
			s.log.Info("request",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", writer.status),
				zap.Int64("duration_ms", elapsed.Milliseconds()),
			)
		}()

		next.ServeHTTP(writer, r)
	})
}

type requestIDKey struct{}

// RequestID returns the id the middleware attached to the request context.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func respond(w http.ResponseWriter, status int, payload any, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, status, payload)
}

func notRouted(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func readBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func pathID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ID", fmt.Sprintf("invalid id %q", raw), nil)
		return 0, false
	}
	return id, true
}

// pagination reads limit and offset. Malformed values fall back to the
// defaults; negative offsets are left for the service to reject.
func pagination(r *http.Request) (limit, offset int) {
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, _ = strconv.Atoi(raw)
	}
	return limit, offset
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status(), domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
