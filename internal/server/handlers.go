package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/genomesearch/internal/auth"
	"github.com/hyperjump/genomesearch/internal/genome"
	"github.com/hyperjump/genomesearch/internal/models"
	"github.com/hyperjump/genomesearch/internal/storage"
	"github.com/hyperjump/genomesearch/internal/workspace"
	"go.uber.org/zap"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var params models.SearchParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("ref", params.Ref), zap.String("query", params.Query))
	result, err := s.engine.Search(r.Context(), &params)
	if err != nil {
		s.logFailure("search", err)
		s.respondError(w, httpStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearchRegion(w http.ResponseWriter, r *http.Request) {
	var params models.SearchRegionParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search region request", zap.String("ref", params.Ref), zap.String("contig", params.QueryContigID))
	result, err := s.engine.SearchRegion(r.Context(), &params)
	if err != nil {
		s.logFailure("search region", err)
		s.respondError(w, httpStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearchContigs(w http.ResponseWriter, r *http.Request) {
	var params models.SearchContigsParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search contigs request", zap.String("ref", params.Ref), zap.String("query", params.Query))
	result, err := s.engine.SearchContigs(r.Context(), &params)
	if err != nil {
		s.logFailure("search contigs", err)
		s.respondError(w, httpStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleListIndexes(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 100
	}
	records, err := s.engine.ListIndexes(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list indexes failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*models.IndexRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"indexes": records})
}

func (s *Server) handleDropIndex(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	s.logger.Debug("drop index request", zap.String("key", key))
	if err := s.engine.DropIndex(r.Context(), key); err != nil {
		s.logFailure("drop index", err)
		s.respondError(w, httpStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"key": key, "status": "deleted"})
}

// warmRequest lists refs to index ahead of the first query.
type warmRequest struct {
	Refs []string `json:"refs"`
}

func (s *Server) handleWarm(w http.ResponseWriter, r *http.Request) {
	var req warmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Refs) == 0 {
		s.respondError(w, http.StatusBadRequest, "refs are required")
		return
	}
	ready, err := s.engine.Warm(r.Context(), req.Refs)
	resp := map[string]interface{}{"ready": ready, "requested": len(req.Refs)}
	if err != nil {
		s.logger.Warn("warm incomplete", zap.Int("ready", ready), zap.Error(err))
		resp["error"] = err.Error()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// logFailure logs caller errors at debug and everything else at error.
func (s *Server) logFailure(op string, err error) {
	if httpStatus(err) < http.StatusInternalServerError {
		s.logger.Debug(op+" rejected", zap.Error(err))
		return
	}
	s.logger.Error(op+" failed", zap.Error(err))
}

// httpStatus maps a service error to its REST status code.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidParams), errors.Is(err, genome.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, workspace.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrUnavailable), errors.Is(err, auth.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
