// Package bridgeapi exposes the view message protocol over HTTP.
package bridgeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vrognas/redmyne/internal/adapters/bridge"
	"github.com/vrognas/redmyne/internal/app"
	"github.com/vrognas/redmyne/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the bridge endpoint: GET renders the loaded week, POST
// dispatches one view intent, and the pending/commit subroutes expose the
// draft queue.
type Handler struct {
	svc    *app.Service
	bridge *bridge.Bridge
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// MessagesEnvelope wraps the outbound messages produced by one dispatched
// intent.
type MessagesEnvelope struct {
	Messages []bridge.Outbound `json:"messages"`
}

// PendingResponse lists queued operations in insertion order.
type PendingResponse struct {
	Operations []string `json:"operations"`
}

// CommitFailureDTO reports one operation the remote server rejected.
type CommitFailureDTO struct {
	Description string `json:"description"`
	Error       string `json:"error"`
}

// CommitResponse summarizes one commit pass.
type CommitResponse struct {
	Attempted int                `json:"attempted"`
	Applied   int                `json:"applied"`
	Failed    []CommitFailureDTO `json:"failed"`
}

// NewHandler constructs one bridge HTTP adapter around a timesheet service.
func NewHandler(svc *app.Service) *Handler {
	return &Handler{
		svc:    svc,
		bridge: bridge.NewBridge(svc),
	}
}

// ServeHTTP routes one bridge request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch normalizePath(r.URL.Path) {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.handleRender(w, r)
		case http.MethodPost:
			h.handleDispatch(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case "pending":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handlePending(w)
	case "commit":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleCommit(w, r)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// handleRender serves GET `/`. A week query parameter loads that week first;
// without one the previously loaded week is re-rendered.
func (h *Handler) handleRender(w http.ResponseWriter, r *http.Request) {
	if weekParam := strings.TrimSpace(r.URL.Query().Get("week")); weekParam != "" {
		week, err := domain.ParseWeek(weekParam)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: fmt.Sprintf("parse week %q: %v", weekParam, err),
			})
			return
		}
		if _, err := h.svc.LoadWeek(r.Context(), week); err != nil {
			writeErrorFrom(w, err)
			return
		}
	}
	render, err := h.bridge.RenderView(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, render)
}

// handleDispatch serves POST `/`. The response always carries the outbound
// messages envelope; the status code reflects the dispatch error, so error
// toasts still reach the view.
func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "read request body: " + err.Error(),
		})
		return
	}
	messages, err := h.bridge.Dispatch(r.Context(), raw)
	if messages == nil {
		messages = []bridge.Outbound{}
	}
	writeJSON(w, statusFromError(err), MessagesEnvelope{Messages: messages})
}

// handlePending serves GET `/pending`.
func (h *Handler) handlePending(w http.ResponseWriter) {
	ops := h.svc.Pending()
	descriptions := make([]string, 0, len(ops))
	for _, op := range ops {
		descriptions = append(descriptions, op.Description)
	}
	writeJSON(w, http.StatusOK, PendingResponse{Operations: descriptions})
}

// handleCommit serves POST `/commit`.
func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Commit(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	resp := CommitResponse{
		Attempted: report.Attempted,
		Applied:   report.Applied,
		Failed:    make([]CommitFailureDTO, 0, len(report.Failed)),
	}
	for _, failure := range report.Failed {
		resp.Failed = append(resp.Failed, CommitFailureDTO{
			Description: failure.Description,
			Error:       failure.Err.Error(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// statusFromError maps dispatch errors onto HTTP status codes.
func statusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, app.ErrRowNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrNoWeekLoaded),
		errors.Is(err, app.ErrEmptyClipboard),
		errors.Is(err, app.ErrNothingToRestore),
		errors.Is(err, app.ErrNothingToUndo):
		return http.StatusConflict
	case errors.Is(err, bridge.ErrUnknownIntent),
		errors.Is(err, bridge.ErrMalformedIntent),
		errors.Is(err, app.ErrNothingToMerge),
		errors.Is(err, app.ErrUnknownField),
		errors.Is(err, domain.ErrInvalidDayIndex),
		errors.Is(err, domain.ErrInvalidHours),
		errors.Is(err, domain.ErrInvalidIssueID),
		errors.Is(err, domain.ErrInvalidActivityID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	if err == nil {
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
		return
	}
	status := statusFromError(err)
	code := "internal_error"
	switch status {
	case http.StatusBadRequest:
		code = "invalid_request"
	case http.StatusNotFound:
		code = "not_found"
	case http.StatusConflict:
		code = "conflict"
	}
	writeJSONError(w, status, APIError{Code: code, Message: err.Error()})
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}
