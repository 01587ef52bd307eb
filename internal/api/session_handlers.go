// Package api provides HTTP handlers for DoughPilot endpoints.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/doughlab/DoughPilot/internal/models"
	"github.com/doughlab/DoughPilot/internal/recipe"
	"github.com/doughlab/DoughPilot/internal/session"
)

// DefaultSnoozeMillis is the snooze extension used when the request does
// not specify one.
const DefaultSnoozeMillis = 60_000

// sessionView is the API representation of the active session.
type sessionView struct {
	State             session.State `json:"state"`
	RecipeID          string        `json:"recipeId"`
	RecipeName        string        `json:"recipeName"`
	Steps             []recipe.Step `json:"steps"`
	CurrentStepIndex  int           `json:"currentStepIndex"`
	NextAlarmAtMillis int64         `json:"nextAlarmAtMillis"`
	RemainingMillis   *int64        `json:"remainingMillis,omitempty"`
	SavedRecipeID     int64         `json:"savedRecipeId,omitempty"`
}

func (s *Server) viewOf(sess *session.Session) sessionView {
	v := sessionView{
		State:             sess.State(),
		RecipeID:          sess.Recipe.ID,
		RecipeName:        sess.Recipe.Name,
		Steps:             sess.Recipe.Steps,
		CurrentStepIndex:  sess.CurrentStepIndex,
		NextAlarmAtMillis: sess.NextAlarmAtMillis,
		SavedRecipeID:     sess.SavedRecipeID,
	}
	if sess.State() == session.StateWaiting {
		remaining := sess.RemainingMillis(s.now().UnixMilli())
		v.RemainingMillis = &remaining
	}
	return v
}

// sessionErrorStatus maps state-machine errors to HTTP status codes.
func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		return http.StatusNotFound
	case errors.Is(err, session.ErrEmptyRecipe):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotWaiting),
		errors.Is(err, session.ErrAlreadyWaiting),
		errors.Is(err, session.ErrNoNextStep),
		errors.Is(err, session.ErrNotLastStep),
		errors.Is(err, session.ErrAtFirstStep):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// startSessionRequest is the body of POST /session/start.
type startSessionRequest struct {
	SavedRecipeID int64 `json:"savedRecipeId"`
}

// startSessionHandler handles POST /session/start: begin a session at the
// first step of a saved recipe, replacing any session in progress.
func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.startSessionHandler: processing start request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.startSessionHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.startSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.SavedRecipeID == 0 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: savedRecipeId"))
		return
	}

	sr, err := s.st.GetSavedRecipe(req.SavedRecipeID)
	if err != nil {
		slog.Error("Server.startSessionHandler: failed to fetch recipe", "id", req.SavedRecipeID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch recipe"))
		return
	}
	if sr == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Recipe not found"))
		return
	}

	sess, err := s.manager.Start(sr.Recipe, sr.ID)
	if err != nil {
		slog.Warn("Server.startSessionHandler: failed to start session", "id", req.SavedRecipeID, "error", err)
		writeJSONResponse(w, sessionErrorStatus(err), models.Error(err.Error()))
		return
	}
	slog.Info("Server.startSessionHandler: session started", "recipe", sess.Recipe.ID)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Session started", s.viewOf(sess)))
}

// sessionHandler handles GET /session: the reconciled view of the active
// session, including the time remaining on a pending alarm.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.sessionHandler: processing session request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.sessionHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.manager.Restore()
	if err != nil {
		slog.Error("Server.sessionHandler: failed to load session", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	if sess == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No active session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.viewOf(sess)))
}

// advanceHandler handles POST /session/advance. Advancing from the last
// step finishes the recipe instead.
func (s *Server) advanceHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.advanceHandler: processing advance request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.manager.Advance()
	if errors.Is(err, session.ErrNoNextStep) {
		if err := s.manager.Finish(); err != nil {
			slog.Warn("Server.advanceHandler: failed to finish session", "error", err)
			writeJSONResponse(w, sessionErrorStatus(err), models.Error(err.Error()))
			return
		}
		slog.Info("Server.advanceHandler: session finished from last step")
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Recipe finished", nil))
		return
	}
	if err != nil {
		slog.Warn("Server.advanceHandler: failed to advance session", "error", err)
		writeJSONResponse(w, sessionErrorStatus(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.viewOf(sess)))
}

// startEarlyHandler handles POST /session/start-early.
func (s *Server) startEarlyHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.startEarlyHandler: processing start-early request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.manager.StartEarly()
	if err != nil {
		slog.Warn("Server.startEarlyHandler: failed to start early", "error", err)
		writeJSONResponse(w, sessionErrorStatus(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.viewOf(sess)))
}

// goBackHandler handles POST /session/back.
func (s *Server) goBackHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.goBackHandler: processing back request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.manager.GoBack()
	if err != nil {
		slog.Warn("Server.goBackHandler: failed to go back", "error", err)
		writeJSONResponse(w, sessionErrorStatus(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.viewOf(sess)))
}

// finishHandler handles POST /session/finish.
func (s *Server) finishHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.finishHandler: processing finish request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := s.manager.Finish(); err != nil {
		slog.Warn("Server.finishHandler: failed to finish session", "error", err)
		writeJSONResponse(w, sessionErrorStatus(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Recipe finished", nil))
}

// cancelHandler handles POST /session/cancel.
func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.cancelHandler: processing cancel request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := s.manager.Cancel(); err != nil {
		slog.Error("Server.cancelHandler: failed to cancel session", "error", err)
		writeJSONResponse(w, sessionErrorStatus(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session cancelled", nil))
}

// snoozeRequest is the body of POST /session/snooze.
type snoozeRequest struct {
	ExtraMillis int64 `json:"extraMillis"`
}

// snoozeHandler handles POST /session/snooze. An empty body or zero
// extraMillis snoozes by the default one minute.
func (s *Server) snoozeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.snoozeHandler: processing snooze request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req snoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("Server.snoozeHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.ExtraMillis < 0 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("extraMillis must not be negative"))
		return
	}
	if req.ExtraMillis == 0 {
		req.ExtraMillis = DefaultSnoozeMillis
	}

	sess, err := s.manager.Snooze(time.Duration(req.ExtraMillis) * time.Millisecond)
	if err != nil {
		slog.Warn("Server.snoozeHandler: failed to snooze", "error", err)
		writeJSONResponse(w, sessionErrorStatus(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.viewOf(sess)))
}

// pendingStepHandler handles GET /session/pending-step: the consume-once
// navigation target set by alarm delivery. Returns 204 when none is
// pending.
func (s *Server) pendingStepHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.pendingStepHandler: processing pending-step request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stepIndex, ok := s.manager.TakePendingStep()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	slog.Info("Server.pendingStepHandler: pending step consumed", "step", stepIndex)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]int{"stepIndex": stepIndex}))
}
