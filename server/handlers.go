package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jonwraymond/kantodex/observe"
	"github.com/jonwraymond/kantodex/pokedex"
)

// Compare accepts between MinCompare and MaxCompare ids.
const (
	MinCompare = 2
	MaxCompare = 6
)

const unavailableDetail = "Unable to fetch Pokemon data. Please try again later."

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, ErrorResponse{Detail: detail})
}

// parseID reads a Kanto id from a path or query value.
func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidID, raw)
	}
	if id < 1 || id > pokedex.KantoMaxID {
		return 0, fmt.Errorf("%w: Pokemon ID must be between 1 and %d (Kanto region only)", ErrInvalidID, pokedex.KantoMaxID)
	}
	return id, nil
}

// parseCompareIDs reads a comma separated list of MinCompare..MaxCompare ids.
func parseCompareIDs(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: ids is required", ErrInvalidCompare)
	}
	parts := strings.Split(raw, ",")
	if len(parts) < MinCompare || len(parts) > MaxCompare {
		return nil, fmt.Errorf("%w: between %d and %d ids are required, got %d", ErrInvalidCompare, MinCompare, MaxCompare, len(parts))
	}
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := parseID(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCompare, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// detailFor maps a single-creature service error to a status and message.
func (s *Server) detailFor(r *http.Request, id int, err error) (int, string) {
	if errors.Is(err, pokedex.ErrNotFound) {
		return http.StatusNotFound, fmt.Sprintf("Pokemon with ID %d not found", id)
	}
	s.logger.Error(r.Context(), "request failed", observe.F("path", r.URL.Path), observe.F("error", err))
	return http.StatusServiceUnavailable, unavailableDetail
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.ListCreatures(r.Context(), s.cfg.ListLimit)
	if err != nil {
		s.logger.Error(r.Context(), "list failed", observe.F("error", err))
		writeError(w, http.StatusServiceUnavailable, unavailableDetail)
		return
	}
	if items == nil {
		items = []pokedex.ListItem{}
	}
	writeJSON(w, http.StatusOK, pokedex.ListResult{Count: len(items), Pokemon: items})
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errDetail(err))
		return
	}
	detail, err := s.svc.GetDetail(r.Context(), id)
	if err != nil {
		code, msg := s.detailFor(r, id, err)
		writeError(w, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleEvolution(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errDetail(err))
		return
	}
	chain, err := s.svc.GetEvolutionChain(r.Context(), id)
	if err != nil {
		code, msg := s.detailFor(r, id, err)
		if code == http.StatusNotFound {
			msg = fmt.Sprintf("Evolution chain for Pokemon %d not found", id)
		}
		writeError(w, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, chain)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	ids, err := parseCompareIDs(r.URL.Query().Get("ids"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errDetail(err))
		return
	}
	details, err := s.svc.CompareCreatures(r.Context(), ids)
	if err != nil {
		s.logger.Error(r.Context(), "compare failed", observe.F("error", err))
		writeError(w, http.StatusServiceUnavailable, unavailableDetail)
		return
	}
	if len(details) == 0 {
		writeError(w, http.StatusNotFound, "None of the requested Pokemon were found")
		return
	}
	writeJSON(w, http.StatusOK, pokedex.CompareResult{Count: len(details), Pokemon: details})
}

// errDetail strips the package prefix from a validation error.
func errDetail(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrInvalidCompare, ErrInvalidID} {
		msg = strings.ReplaceAll(msg, sentinel.Error()+": ", "")
	}
	return msg
}
