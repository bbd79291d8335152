/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/elevatord/internal/building"
	"github.com/friendsincode/elevatord/internal/dispatch"
	"github.com/friendsincode/elevatord/internal/logbuffer"
	"github.com/friendsincode/elevatord/internal/models"
	"github.com/friendsincode/elevatord/internal/strategy"
	"github.com/friendsincode/elevatord/internal/version"
)

const defaultLogLimit = 500

type strategyRequest struct {
	Kind string `json:"kind"`
}

type strategyResponse struct {
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}

type hallCallRequest struct {
	Floor     int    `json:"floor"`
	Direction string `json:"direction"`
}

type gotoRequest struct {
	Floor int `json:"floor"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "ok",
		"version": version.Current().Version,
	}
	code := http.StatusOK

	switch {
	case s.leader != nil && !s.leader.IsLeader():
		response["status"] = "standby"
	case !s.fleet.Running():
		response["status"] = "stopped"
		code = http.StatusServiceUnavailable
	}
	if s.leader != nil {
		response["leader"] = s.leader.IsLeader()
	}
	writeJSON(w, code, response)
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.fleet.Snapshot())
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	name := s.fleet.Strategy().Name()
	writeJSON(w, http.StatusOK, strategyResponse{Kind: name, Description: strategy.Describe(strategy.Kind(name))})
}

func (s *Server) handlePutStrategy(w http.ResponseWriter, r *http.Request) {
	var req strategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Kind == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if err := s.fleet.ChangeStrategy(strategy.Kind(req.Kind)); err != nil {
		if errors.Is(err, strategy.ErrUnknownKind) {
			writeError(w, http.StatusBadRequest, "unknown_strategy")
			return
		}
		s.logger.Error().Err(err).Str("kind", req.Kind).Msg("strategy change failed")
		writeError(w, http.StatusInternalServerError, "strategy_change_failed")
		return
	}

	name := s.fleet.Strategy().Name()
	writeJSON(w, http.StatusOK, strategyResponse{Kind: name, Description: strategy.Describe(strategy.Kind(name))})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	kinds := strategy.Kinds()
	out := make([]strategyResponse, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, strategyResponse{Kind: string(k), Description: strategy.Describe(k)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHallCall(w http.ResponseWriter, r *http.Request) {
	var req hallCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	direction, err := models.ParseDirection(req.Direction)
	if err != nil || !direction.IsTravel() {
		writeError(w, http.StatusBadRequest, "invalid_direction")
		return
	}

	pressedAt := s.fleet.RegisterButtonPress(req.Floor, direction)
	if pressedAt.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid_floor")
		return
	}
	writeJSON(w, http.StatusAccepted, models.PendingRequest{Floor: req.Floor, Direction: direction, PressedAt: pressedAt})
}

func (s *Server) handleForceGoTo(w http.ResponseWriter, r *http.Request) {
	cabinID, ok := cabinParam(w, r)
	if !ok {
		return
	}
	var req gotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if err := s.fleet.ForceGoToFloor(r.Context(), cabinID, req.Floor); err != nil {
		s.writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForceStop(w http.ResponseWriter, r *http.Request) {
	cabinID, ok := cabinParam(w, r)
	if !ok {
		return
	}
	if err := s.fleet.ForceStop(cabinID); err != nil {
		s.writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrUnknownCabin):
		writeError(w, http.StatusNotFound, "cabin_not_found")
	case errors.Is(err, building.ErrFloorOutOfRange):
		writeError(w, http.StatusBadRequest, "invalid_floor")
	default:
		s.logger.Error().Err(err).Msg("cabin command failed")
		writeError(w, http.StatusInternalServerError, "command_failed")
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}

	q := r.URL.Query()
	params := logbuffer.QueryParams{
		Level:      q.Get("level"),
		Component:  q.Get("component"),
		Search:     q.Get("search"),
		Descending: q.Get("order") != "asc",
		Limit:      defaultLogLimit,
	}
	if since := q.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			params.Since = t
		}
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			params.Limit = n
		}
	}
	if cabin := q.Get("cabin_id"); cabin != "" {
		id, err := strconv.Atoi(cabin)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_cabin_id")
			return
		}
		params.CabinID = &id
	}

	entries := s.logBuffer.Query(params)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
		"stats":   s.logBuffer.StatsForCabin(params.CabinID),
	})
}

func cabinParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "cabinID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_cabin_id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
