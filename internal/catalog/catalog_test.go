package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"yasp/internal/logging"
	"yasp/internal/metrics"
	"yasp/internal/reconcile"
	"yasp/internal/spec"
	"yasp/internal/store"
)

const petstoreYAML = `openapi: 3.0.3
info:
  title: Petstore
  version: "1.0"
servers:
  - url: /v1
paths:
  /pets:
    get:
      responses:
        "200":
          description: ok
`

type stubFetcher struct {
	result spec.Result
	calls  int
}

func (f *stubFetcher) Fetch(context.Context, string) spec.Result {
	f.calls++
	return f.result
}

func newTestService(t *testing.T, fetcher Fetcher) (*Service, *metrics.Collector) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "yasp.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	collector := metrics.NewCollector()
	return NewService(st, fetcher, collector, logging.Discard()), collector
}

func TestImportFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(petstoreYAML))
	}))
	defer server.Close()

	svc, collector := newTestService(t, spec.NewFetcher(spec.FetcherOptions{}))
	rec, err := svc.Import(context.Background(), ImportRequest{
		Name:     "Petstore",
		Endpoint: "http://localhost:4010/",
		SpecURL:  server.URL + "/specs/openapi.yaml",
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if rec.ID == "" || rec.Format != reconcile.FormatYAML {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !rec.Valid {
		t.Fatalf("expected valid spec, got %q", rec.ValidationError)
	}
	want := []string{"http://localhost:4010", server.URL + "/v1"}
	if len(rec.Servers) != len(want) {
		t.Fatalf("unexpected servers: %+v", rec.Servers)
	}
	for i, s := range rec.Servers {
		if s.URL != want[i] {
			t.Fatalf("server %d = %q, want %q", i, s.URL, want[i])
		}
	}
	if !strings.Contains(rec.Content, "title: Petstore") {
		t.Fatalf("content lost fields:\n%s", rec.Content)
	}

	got, err := svc.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != rec.Content {
		t.Fatal("stored content differs from returned content")
	}

	out := collector.PrometheusFormat()
	for _, line := range []string{
		`yasp_spec_fetches_total{outcome="ok"} 1`,
		`yasp_reconciles_total{outcome="patched"} 1`,
		`yasp_catalog_imports_total{source="url",result="ok"} 1`,
	} {
		if !strings.Contains(out, line) {
			t.Errorf("metrics missing %q", line)
		}
	}
}

func TestImportFromContentWithoutServers(t *testing.T) {
	svc, _ := newTestService(t, &stubFetcher{})
	content := `{"openapi":"3.0.0","info":{"title":"t","version":"1"},"paths":{}}`
	rec, err := svc.Import(context.Background(), ImportRequest{
		Name:     "inline",
		Endpoint: "https://api.foo.com/v1/",
		Content:  content,
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if rec.Format != reconcile.FormatJSON {
		t.Fatalf("format = %s", rec.Format)
	}
	if len(rec.Servers) != 1 || rec.Servers[0].URL != "https://api.foo.com/v1" {
		t.Fatalf("unexpected servers: %+v", rec.Servers)
	}
}

func TestImportInvalidSpecIsStoredWithVerdict(t *testing.T) {
	svc, _ := newTestService(t, &stubFetcher{})
	rec, err := svc.Import(context.Background(), ImportRequest{
		Name:     "broken",
		Endpoint: "https://x.example.com",
		Content:  `{"openapi":"3.0.0","paths":{}}`,
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if rec.Valid || rec.ValidationError == "" {
		t.Fatalf("expected validation failure to be recorded: %+v", rec)
	}
}

func TestImportUnparseableContentKeptVerbatim(t *testing.T) {
	svc, collector := newTestService(t, &stubFetcher{})
	content := "openapi: [unterminated\n"
	rec, err := svc.Import(context.Background(), ImportRequest{Name: "bad", Endpoint: "https://x", Content: content})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if rec.Content != content || rec.Valid {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !strings.Contains(collector.PrometheusFormat(), `yasp_reconciles_total{outcome="parse_failure"} 1`) {
		t.Fatal("parse failure not counted")
	}
}

func TestImportFetchError(t *testing.T) {
	fetcher := &stubFetcher{result: spec.FetchRemoteSpec(context.Background(), "file:///etc/passwd")}
	svc, collector := newTestService(t, fetcher)
	_, err := svc.Import(context.Background(), ImportRequest{Name: "x", Endpoint: "", SpecURL: "file:///etc/passwd"})
	var fe *spec.FetchError
	if !errors.As(err, &fe) || fe.Kind != spec.KindDisallowedProtocol {
		t.Fatalf("expected disallowed protocol error, got %v", err)
	}
	list, _ := svc.List(context.Background(), store.ListOptions{})
	if len(list) != 0 {
		t.Fatalf("failed import should not be stored: %+v", list)
	}
	if !strings.Contains(collector.PrometheusFormat(), `yasp_catalog_imports_total{source="url",result="error"} 1`) {
		t.Fatal("failed import not counted")
	}
}

func TestImportRequestValidation(t *testing.T) {
	fetcher := &stubFetcher{}
	svc, _ := newTestService(t, fetcher)
	for name, req := range map[string]ImportRequest{
		"no name":      {Content: "openapi: 3.0.0"},
		"no source":    {Name: "x"},
		"both sources": {Name: "x", SpecURL: "https://a", Content: "openapi: 3.0.0"},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Import(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
	if fetcher.calls != 0 {
		t.Fatalf("invalid requests should not fetch, got %d calls", fetcher.calls)
	}
}

func TestUpdateKeepsIdentity(t *testing.T) {
	svc, _ := newTestService(t, &stubFetcher{})
	ctx := context.Background()
	created, err := svc.Import(ctx, ImportRequest{Name: "a", Endpoint: "https://one.example.com", Content: petstoreYAML})
	if err != nil {
		t.Fatal(err)
	}
	updated, err := svc.Update(ctx, created.ID, ImportRequest{Name: "b", Endpoint: "https://two.example.com", Content: petstoreYAML})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID || !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("identity changed: %+v vs %+v", updated, created)
	}
	if updated.Name != "b" || updated.Servers[0].URL != "https://two.example.com" {
		t.Fatalf("update not applied: %+v", updated)
	}

	if _, err := svc.Update(ctx, "missing", ImportRequest{Name: "c", Content: petstoreYAML}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService(t, &stubFetcher{})
	ctx := context.Background()
	rec, err := svc.Import(ctx, ImportRequest{Name: "a", Content: petstoreYAML})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestImportMasksCredentialsInSpecURL(t *testing.T) {
	fetcher := &stubFetcher{result: spec.Result{Content: petstoreYAML}}
	svc, _ := newTestService(t, fetcher)
	rec, err := svc.Import(context.Background(), ImportRequest{
		Name:    "private",
		SpecURL: "https://api.example.com/openapi.yaml?token=s3cr3t",
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(rec.SpecURL, "s3cr3t") {
		t.Fatalf("credential persisted: %q", rec.SpecURL)
	}
	if rec.Servers[0].URL != "https://api.example.com/v1" {
		t.Fatalf("inference should use the real URL: %+v", rec.Servers)
	}
}
