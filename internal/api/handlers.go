package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"wakemeup/internal/domain/alarm"
	"wakemeup/internal/metrics"
)

// healthResponse reports daemon liveness and the tracking state.
type healthResponse struct {
	Status   string `json:"status"`
	Tracking bool   `json:"tracking"`
	Session  string `json:"session"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r

	session := s.alarms.Session()

	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Tracking: session.IsTracking(),
		Session:  session.State().String(),
	})
}

func (s *Server) handleListAlarms(w http.ResponseWriter, r *http.Request) {
	_ = r

	writeJSON(w, http.StatusOK, s.alarms.Alarms())
}

func (s *Server) handleGetAlarm(w http.ResponseWriter, r *http.Request) {
	a, err := s.alarms.Alarm(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAddAlarm(w http.ResponseWriter, r *http.Request) {
	var draft alarm.Alarm
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "malformed alarm payload")

		return
	}

	added, err := s.alarms.AddAlarm(r.Context(), draft)

	switch {
	case errors.Is(err, alarm.ErrDuplicateID):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusCreated, added)
	}
}

func (s *Server) handleUpdateAlarm(w http.ResponseWriter, r *http.Request) {
	var a alarm.Alarm
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "malformed alarm payload")

		return
	}

	// The path id wins over whatever the body carries.
	a.ID = mux.Vars(r)["id"]

	updated, err := s.alarms.UpdateAlarm(r.Context(), a)

	switch {
	case errors.Is(err, alarm.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusOK, updated)
	}
}

func (s *Server) handleRemoveAlarm(w http.ResponseWriter, r *http.Request) {
	err := s.alarms.RemoveAlarm(r.Context(), mux.Vars(r)["id"])

	switch {
	case errors.Is(err, alarm.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleToggleAlarm(w http.ResponseWriter, r *http.Request) {
	toggled, err := s.alarms.ToggleAlarm(r.Context(), mux.Vars(r)["id"])

	switch {
	case errors.Is(err, alarm.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, toggled)
	}
}

func (s *Server) handlePushPosition(w http.ResponseWriter, r *http.Request) {
	if s.push == nil {
		writeError(w, http.StatusConflict, "position feed disabled: daemon runs on a replayed track")

		return
	}

	var position alarm.Coordinate
	if err := json.NewDecoder(r.Body).Decode(&position); err != nil {
		writeError(w, http.StatusBadRequest, "malformed position payload")

		return
	}

	metrics.PositionsReceived.Inc()
	s.push.Push(position)

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePlacePredict(w http.ResponseWriter, r *http.Request) {
	if s.places == nil {
		writeError(w, http.StatusServiceUnavailable, "place lookup not configured")

		return
	}

	input := r.URL.Query().Get("input")
	if input == "" {
		writeError(w, http.StatusBadRequest, "input query parameter is required")

		return
	}

	predictions, err := s.places.Predict(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, predictions)
}

func (s *Server) handlePlaceResolve(w http.ResponseWriter, r *http.Request) {
	if s.places == nil {
		writeError(w, http.StatusServiceUnavailable, "place lookup not configured")

		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id query parameter is required")

		return
	}

	coordinate, err := s.places.Resolve(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())

		return
	}

	if coordinate == nil {
		writeError(w, http.StatusNotFound, "unknown place")

		return
	}

	writeJSON(w, http.StatusOK, coordinate)
}
