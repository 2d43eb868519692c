package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/ident"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/importer"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/lifecycle"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/rollup"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/schedule"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	name := r.URL.Query().Get("filename")
	if name == "" {
		name = "payload.json"
	}
	charset := r.URL.Query().Get("charset")
	if charset == "" {
		charset = s.charset
	}

	payload, err := importer.DecodeFile(name, raw, charset)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validator.Validate(payload); err != nil {
		var verr *importer.ValidationError
		if errors.As(err, &verr) {
			respond(w, http.StatusUnprocessableEntity, map[string]any{
				"error":      "validation failed",
				"violations": verr.Violations,
			})
			return
		}
		s.writeError(w, err)
		return
	}

	ws := payload.Worksheet()
	if err := s.store.CreateWorksheet(r.Context(), ws); err != nil {
		s.writeError(w, err)
		return
	}
	respond(w, http.StatusCreated, ws)
}

func (s *Server) handleListWorksheets(w http.ResponseWriter, r *http.Request) {
	sheets, err := s.store.ListWorksheets(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	respond(w, http.StatusOK, sheets)
}

func (s *Server) handleGetWorksheet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ws, err := s.store.GetWorksheet(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respond(w, http.StatusOK, ws)
}

func (s *Server) handleWorksheetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetWorksheet(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	assignments, err := s.store.ListAssignments(r.Context(), store.AssignmentFilter{WorksheetID: id})
	if err != nil {
		s.writeError(w, err)
		return
	}
	respond(w, http.StatusOK, rollup.SummarizeWorksheet(id, assignments))
}

func (s *Server) handleDeleteWorksheet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteWorksheet(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	var filter store.AssignmentFilter
	q := r.URL.Query()
	if v := q.Get("worksheet_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "worksheet_id must be an integer")
			return
		}
		filter.WorksheetID = id
	}
	filter.OperationCode = q.Get("operation_code")
	filter.Status = model.Status(q.Get("status"))

	assignments, err := s.store.ListAssignments(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respond(w, http.StatusOK, assignments)
}

type assignRequest struct {
	model.AssignmentKey
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// The target row is the unassigned seed; the operator in the request
	// is who takes it.
	key := req.AssignmentKey
	operator := key.Operator
	key.Operator = ""

	a, err := s.machine.Assign(r.Context(), bearerToken(r), key, operator)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respond(w, http.StatusOK, a)
}

type startRequest struct {
	model.AssignmentKey
	StartDate string `json:"start_date"`
}

func (s *Server) handleStartActivity(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := s.machine.StartActivity(r.Context(), bearerToken(r), req.AssignmentKey, req.StartDate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respond(w, http.StatusOK, a)
}

type endRequest struct {
	model.AssignmentKey
	ActivityID string   `json:"activity_id"`
	EndDate    string   `json:"end_date"`
	Notes      string   `json:"notes"`
	GPSTrack   string   `json:"gps_track"`
	Photos     []string `json:"photos"`
	Final      bool     `json:"final"`
}

func (s *Server) handleEndActivity(w http.ResponseWriter, r *http.Request) {
	var req endRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := s.machine.EndActivity(r.Context(), bearerToken(r), req.AssignmentKey,
		req.ActivityID, req.EndDate, req.Notes, req.GPSTrack, req.Photos, req.Final)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respond(w, http.StatusOK, a)
}

type infoRequest struct {
	Notes    string   `json:"notes"`
	GPSTrack string   `json:"gps_track"`
	Photos   []string `json:"photos"`
}

func (s *Server) handleActivityInfo(w http.ResponseWriter, r *http.Request) {
	var req infoRequest
	if !decodeBody(w, r, &req) {
		return
	}
	act, err := s.machine.AddActivityInfo(r.Context(), bearerToken(r),
		chi.URLParam(r, "id"), req.Notes, req.GPSTrack, req.Photos)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respond(w, http.StatusOK, act)
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	events, err := s.scheduleEvents(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	filter := r.URL.Query().Get("status")
	respond(w, http.StatusOK, schedule.Project(events, filter))
}

func (s *Server) scheduleEvents(r *http.Request) ([]model.ScheduleEvent, error) {
	sheets, err := s.store.ListWorksheets(r.Context())
	if err != nil {
		return nil, err
	}
	events := make([]model.ScheduleEvent, 0, len(sheets))
	for _, ws := range sheets {
		assignments, err := s.store.ListAssignments(r.Context(), store.AssignmentFilter{WorksheetID: ws.ID})
		if err != nil {
			return nil, err
		}
		events = append(events, schedule.EventFromWorksheet(ws, rollup.DeriveOperationStatus(assignments)))
	}
	return events, nil
}

// writeError maps domain errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		invalidState *lifecycle.InvalidStateError
		assigned     *lifecycle.AlreadyAssignedError
		open         *lifecycle.ActivityOpenError
		ended        *lifecycle.AlreadyEndedError
		notFound     *lifecycle.ActivityNotFoundError
		notEnded     *lifecycle.ActivityNotEndedError
		badID        *ident.InvalidIdentifierError
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrWorksheetExists):
		respondError(w, http.StatusConflict, "worksheet already exists")
	case errors.Is(err, lifecycle.ErrTokenRequired):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &invalidState),
		errors.As(err, &assigned),
		errors.As(err, &open),
		errors.As(err, &ended),
		errors.As(err, &notEnded):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &badID):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		zap.L().Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func bearerToken(r *http.Request) model.Token {
	h := r.Header.Get("Authorization")
	return model.Token(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func respond(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respond(w, code, map[string]string{"error": msg})
}
