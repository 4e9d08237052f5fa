package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"compclient/internal/model"
	"compclient/internal/service"
	"compclient/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// CompetitionHandler handles the competition endpoints
type CompetitionHandler struct {
	svc *service.CompetitionService
}

// NewCompetitionHandler creates a new competition handler
func NewCompetitionHandler(svc *service.CompetitionService) *CompetitionHandler {
	return &CompetitionHandler{svc: svc}
}

// Config handles GET /api/competition/config
func (h *CompetitionHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.ConfigResponse{Success: true, Data: h.svc.Config()})
}

// Status handles GET /api/competition/status
func (h *CompetitionHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Status(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Start handles POST /api/competition/start
func (h *CompetitionHandler) Start(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Start(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Submit handles POST /api/competition/submit/{questionId}
func (h *CompetitionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	questionID := mux.Vars(r)["questionId"]

	var req model.SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ack, err := h.svc.Submit(r.Context(), middleware.GetUserID(r.Context()), questionID, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// Progress handles GET /api/competition/progress
func (h *CompetitionHandler) Progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Progress(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Questions handles GET /api/competition/questions
func (h *CompetitionHandler) Questions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.svc.Questions(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *CompetitionHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrAlreadyStarted), errors.Is(err, service.ErrCompleted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrEntryClosed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrNoParticipation), errors.Is(err, service.ErrUnknownQuestion),
		errors.Is(err, service.ErrNoQuestions):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("[Competition] ERROR: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
