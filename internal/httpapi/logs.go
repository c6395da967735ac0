package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"badgetrack/internal/models"
	"badgetrack/internal/store"
)

type createLogRequest struct {
	Barcode   string     `json:"barcode"`
	Direction string     `json:"direction"`
	EventTime *time.Time `json:"event_time,omitempty"`
}

// parseTimeParam accepts RFC3339 or a bare date.
func parseTimeParam(value string) (*time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("unrecognized time format")
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.LogFilter{Barcode: q.Get("barcode")}

	if from := q.Get("from"); from != "" {
		t, err := parseTimeParam(from)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid 'from' timestamp")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := parseTimeParam(to)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid 'to' timestamp")
			return
		}
		filter.To = t
	}

	logs, err := s.store.ListLogs(r.Context(), filter)
	if err != nil {
		s.logger.Errorf("Failed to list logs: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid log id")
		return
	}

	entry, err := s.store.GetLog(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "log not found")
		return
	}
	if err != nil {
		s.logger.Errorf("Failed to get log: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to get log")
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleCreateLog(w http.ResponseWriter, r *http.Request) {
	var req createLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Barcode == "" {
		respondError(w, http.StatusBadRequest, "barcode is required")
		return
	}
	if req.Direction != models.DirectionCheckin && req.Direction != models.DirectionCheckout {
		respondError(w, http.StatusBadRequest, "direction must be CHECKIN or CHECKOUT")
		return
	}

	id, err := s.store.CreateLog(r.Context(), req.Barcode, req.Direction, req.EventTime)
	if errors.Is(err, store.ErrUnknownBarcode) {
		respondError(w, http.StatusBadRequest, "no user exists for this barcode")
		return
	}
	if err != nil {
		s.logger.Errorf("Failed to create log: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create log")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"message": "log created", "id": id})
}

func (s *Server) handleDeleteLog(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid log id")
		return
	}

	err = s.store.DeleteLog(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "log not found")
		return
	}
	if err != nil {
		s.logger.Errorf("Failed to delete log: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to delete log")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "log deleted"})
}
