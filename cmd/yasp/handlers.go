package main

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"yasp/internal/catalog"
	"yasp/internal/ratelimit"
	"yasp/internal/reconcile"
	"yasp/internal/spec"
	"yasp/internal/store"
)

type fetchSpecRequest struct {
	URL string `json:"url"`
}

type reconcileRequest struct {
	Content         string                   `json:"content"`
	ResolvedServers []reconcile.ServerConfig `json:"resolvedServers"`
	Endpoint        string                   `json:"endpoint"`
}

type reconcileResponse struct {
	Content     string           `json:"content"`
	Format      reconcile.Format `json:"format"`
	ParseFailed bool             `json:"parseFailed"`
}

type inferServersRequest struct {
	Content string `json:"content"`
	Origin  string `json:"origin"`
}

type inferServersResponse struct {
	Servers []reconcile.ServerConfig `json:"servers"`
}

// handleFetchSpec always answers 200 with a FetchResult once the request
// itself is valid and within the client's rate limit.
func (s *server) handleFetchSpec(w http.ResponseWriter, r *http.Request) {
	var req fetchSpecRequest
	if err := s.decodeBody(w, r, fetchSpecValidator, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	if !s.allowFetch(w, r) {
		return
	}

	res := s.fetcher.Fetch(r.Context(), req.URL)
	if res.OK() {
		s.metrics.RecordFetch("ok")
		s.logger.Debug("spec fetched", "bytes", len(res.Content))
	} else {
		s.metrics.RecordFetch(string(res.Err.Kind))
		s.logger.Info("spec fetch failed", "kind", res.Err.Kind, "status", res.Err.Status)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := s.decodeBody(w, r, reconcileValidator, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	res := reconcile.Apply(req.Content, req.ResolvedServers, req.Endpoint)
	s.metrics.RecordReconcile(res.ParseFailed)
	if res.ParseFailed {
		s.logger.Debug("reconcile left document unchanged", "format", res.Format)
	}
	writeJSON(w, http.StatusOK, reconcileResponse{
		Content:     res.Content,
		Format:      res.Format,
		ParseFailed: res.ParseFailed,
	})
}

func (s *server) handleInferServers(w http.ResponseWriter, r *http.Request) {
	var req inferServersRequest
	if err := s.decodeBody(w, r, inferServersValidator, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	servers, err := spec.InferServers(r.Context(), req.Content, req.Origin)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if servers == nil {
		servers = []reconcile.ServerConfig{}
	}
	writeJSON(w, http.StatusOK, inferServersResponse{Servers: servers})
}

func (s *server) handleCreateSpec(w http.ResponseWriter, r *http.Request) {
	var req catalog.ImportRequest
	if err := s.decodeBody(w, r, importSpecValidator, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	if req.SpecURL != "" && !s.allowFetch(w, r) {
		return
	}
	rec, err := s.catalog.Import(r.Context(), req)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *server) handleListSpecs(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.catalog.List(r.Context(), opts)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *server) handleGetSpec(w http.ResponseWriter, r *http.Request) {
	rec, err := s.catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleUpdateSpec(w http.ResponseWriter, r *http.Request) {
	var req catalog.ImportRequest
	if err := s.decodeBody(w, r, importSpecValidator, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	if req.SpecURL != "" && !s.allowFetch(w, r) {
		return
	}
	rec, err := s.catalog.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleDeleteSpec(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	_, _ = w.Write([]byte(s.metrics.PrometheusFormat()))
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// allowFetch applies the per-client fetch budget and writes a 429 when it
// is exhausted.
func (s *server) allowFetch(w http.ResponseWriter, r *http.Request) bool {
	err := s.limiter.Allow(clientIP(r))
	if err == nil {
		return true
	}
	var rl *ratelimit.ErrRateLimited
	if errors.As(err, &rl) {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		s.logger.Info("fetch rate limited", "tier", rl.Tier)
		writeError(w, http.StatusTooManyRequests, rl.Error())
		return false
	}
	writeError(w, http.StatusInternalServerError, err.Error())
	return false
}

func (s *server) writeCatalogError(w http.ResponseWriter, err error) {
	var fe *spec.FetchError
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "spec not found")
	case errors.Is(err, catalog.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &fe):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": fe.Message, "kind": string(fe.Kind)})
	default:
		s.logger.Error("catalog operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func listOptions(r *http.Request) (store.ListOptions, error) {
	var opts store.ListOptions
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, errors.New(name + " must be a non-negative integer")
		}
		*dst = n
	}
	return opts, nil
}
