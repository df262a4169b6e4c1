// Package catalog imports API specs: fetch, infer servers, reconcile the
// servers array, validate and persist.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"yasp/internal/metrics"
	"yasp/internal/reconcile"
	"yasp/internal/redact"
	"yasp/internal/spec"
	"yasp/internal/store"
)

var (
	ErrInvalidRequest = errors.New("catalog: invalid request")
	ErrNotFound       = store.ErrNotFound
)

// Store persists catalog records.
type Store interface {
	Create(ctx context.Context, rec store.Record) (store.Record, error)
	Update(ctx context.Context, rec store.Record) (store.Record, error)
	Get(ctx context.Context, id string) (store.Record, error)
	List(ctx context.Context, opts store.ListOptions) ([]store.Record, error)
	Delete(ctx context.Context, id string) error
}

// Fetcher retrieves remote spec documents.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) spec.Result
}

// ImportRequest describes one import. Exactly one of SpecURL and Content is
// set.
type ImportRequest struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	SpecURL  string `json:"specUrl,omitempty"`
	Content  string `json:"content,omitempty"`
}

func (r ImportRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	hasURL := strings.TrimSpace(r.SpecURL) != ""
	hasContent := r.Content != ""
	if hasURL == hasContent {
		return fmt.Errorf("%w: exactly one of specUrl or content is required", ErrInvalidRequest)
	}
	return nil
}

func (r ImportRequest) source() string {
	if r.SpecURL != "" {
		return "url"
	}
	return "content"
}

type Service struct {
	store   Store
	fetcher Fetcher
	metrics *metrics.Collector
	logger  *slog.Logger
}

func NewService(st Store, fetcher Fetcher, collector *metrics.Collector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, fetcher: fetcher, metrics: collector, logger: logger}
}

// Import runs the pipeline and stores a new record. A failed fetch is
// returned as *spec.FetchError.
func (s *Service) Import(ctx context.Context, req ImportRequest) (store.Record, error) {
	rec, err := s.build(ctx, req)
	if err == nil {
		rec, err = s.store.Create(ctx, rec)
	}
	s.recordImport(req, err)
	if err != nil {
		return store.Record{}, err
	}
	s.logger.Info("spec imported", "id", rec.ID, "format", rec.Format, "servers", len(rec.Servers), "valid", rec.Valid)
	return rec, nil
}

// Update re-runs the pipeline for an existing record, keeping its ID and
// creation time.
func (s *Service) Update(ctx context.Context, id string, req ImportRequest) (store.Record, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return store.Record{}, err
	}
	rec, err := s.build(ctx, req)
	if err == nil {
		rec.ID = id
		rec, err = s.store.Update(ctx, rec)
	}
	s.recordImport(req, err)
	if err != nil {
		return store.Record{}, err
	}
	s.logger.Info("spec updated", "id", rec.ID, "format", rec.Format, "servers", len(rec.Servers), "valid", rec.Valid)
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id string) (store.Record, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, opts store.ListOptions) ([]store.Record, error) {
	return s.store.List(ctx, opts)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("spec deleted", "id", id)
	return nil
}

func (s *Service) build(ctx context.Context, req ImportRequest) (store.Record, error) {
	if err := req.validate(); err != nil {
		return store.Record{}, err
	}

	content := req.Content
	if req.SpecURL != "" {
		res := s.fetcher.Fetch(ctx, req.SpecURL)
		if s.metrics != nil {
			s.metrics.RecordFetch(fetchOutcome(res))
		}
		if !res.OK() {
			return store.Record{}, res.Err
		}
		content = res.Content
	}

	resolved, err := spec.InferServers(ctx, content, req.SpecURL)
	if err != nil {
		s.logger.Debug("server inference skipped", "error", err)
		resolved = nil
	}

	patched := reconcile.Apply(content, resolved, req.Endpoint)
	if s.metrics != nil {
		s.metrics.RecordReconcile(patched.ParseFailed)
	}

	rec := store.Record{
		Name:     strings.TrimSpace(req.Name),
		Endpoint: req.Endpoint,
		SpecURL:  redact.URL(req.SpecURL),
		Format:   patched.Format,
		Content:  patched.Content,
		Valid:    true,
	}
	if servers, err := spec.InferServers(ctx, patched.Content, req.SpecURL); err == nil {
		rec.Servers = servers
	}
	if verr := spec.ValidateSpec(ctx, patched.Content); verr != nil {
		rec.Valid = false
		rec.ValidationError = verr.Error()
	}
	return rec, nil
}

func (s *Service) recordImport(req ImportRequest, err error) {
	if s.metrics != nil {
		s.metrics.RecordImport(req.source(), err)
	}
}

func fetchOutcome(res spec.Result) string {
	if res.OK() {
		return "ok"
	}
	return string(res.Err.Kind)
}
