package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"streamlify/internal/idea/model"
	"streamlify/internal/idea/service"
	"streamlify/middleware"
	"streamlify/pkg/logger"
)

// maxBodyBytes caps create and vote request bodies.
const maxBodyBytes = 16 << 10

type IdeaHandler struct {
	Service *service.IdeaService
}

func NewIdeaHandler(service *service.IdeaService) *IdeaHandler {
	return &IdeaHandler{Service: service}
}

// Ideas serves GET (list) and POST (create) on the same path.
func (h *IdeaHandler) Ideas(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listIdeas(w, r)
	case http.MethodPost:
		h.createIdea(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *IdeaHandler) listIdeas(w http.ResponseWriter, r *http.Request) {
	ideas, err := h.Service.List(r.Context())
	if err != nil {
		h.fail(w, "list ideas", err)
		return
	}
	writeJSON(w, http.StatusOK, ideas)
}

func (h *IdeaHandler) createIdea(w http.ResponseWriter, r *http.Request) {
	var req model.CreateIdeaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}

	ideas, err := h.Service.Create(r.Context(), middleware.ActorFrom(r.Context()), *req.Text)
	if errors.Is(err, service.ErrEmptyText) {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}
	if err != nil {
		h.fail(w, "create idea", err)
		return
	}
	writeJSON(w, http.StatusCreated, ideas)
}

func (h *IdeaHandler) Vote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req model.VoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == nil {
		writeError(w, http.StatusBadRequest, "ID is required")
		return
	}

	ideas, err := h.Service.Vote(r.Context(), middleware.ActorFrom(r.Context()), *req.ID)
	switch {
	case errors.Is(err, service.ErrMissingID):
		writeError(w, http.StatusBadRequest, "ID is required")
	case errors.Is(err, service.ErrIdeaNotFound):
		writeError(w, http.StatusNotFound, "Idea not found")
	case errors.Is(err, service.ErrAlreadyVoted):
		writeError(w, http.StatusConflict, "Already voted for this idea")
	case err != nil:
		h.fail(w, "vote", err)
	default:
		writeJSON(w, http.StatusOK, ideas)
	}
}

func (h *IdeaHandler) Flush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ideas, err := h.Service.Flush(r.Context(), middleware.ActorFrom(r.Context()))
	if errors.Is(err, service.ErrForbidden) {
		writeError(w, http.StatusForbidden, "Admin role required")
		return
	}
	if err != nil {
		h.fail(w, "flush", err)
		return
	}
	writeJSON(w, http.StatusOK, ideas)
}

// MyVotes returns the ids of the ideas the caller has voted for.
func (h *IdeaHandler) MyVotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ids, err := h.Service.VotedBy(r.Context(), middleware.ActorFrom(r.Context()))
	if err != nil {
		h.fail(w, "load votes", err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// fail logs the detail and returns an opaque 500.
func (h *IdeaHandler) fail(w http.ResponseWriter, op string, err error) {
	logger.Sugar.Errorf("Handler: Failed to %s: %v", op, err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// decodeBody reads at most maxBodyBytes of JSON into v and writes the error
// response itself when it fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
	} else {
		writeError(w, http.StatusBadRequest, "Invalid request body")
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.ErrorResponse{Error: message})
}
