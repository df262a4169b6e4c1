package spec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultMaxBytes     = 5 * 1024 * 1024
	DefaultMaxRedirects = 3
)

const acceptSpec = "application/json, application/yaml, text/yaml, text/plain, */*"

// Kind classifies a failed fetch.
type Kind string

const (
	KindMalformedURL       Kind = "malformed_url"
	KindDisallowedProtocol Kind = "disallowed_protocol"
	KindBlockedHostname    Kind = "blocked_hostname"
	KindTimeout            Kind = "timeout"
	KindOversized          Kind = "oversized_response"
	KindHTTPError          Kind = "http_error"
	KindNetworkError       Kind = "network_error"
)

// FetchError is the structured failure of a remote spec fetch. Message is
// safe to show to the user as-is.
type FetchError struct {
	Kind    Kind
	Message string
	Status  int
}

func (e *FetchError) Error() string { return e.Message }

func newFetchError(kind Kind, msg string) *FetchError {
	return &FetchError{Kind: kind, Message: msg}
}

// Result holds either the fetched content or an error, never both.
type Result struct {
	Content string
	Err     *FetchError
}

func (r Result) OK() bool { return r.Err == nil }

// MarshalJSON emits exactly one of "content" or "error".
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Err.Message})
	}
	return json.Marshal(struct {
		Content string `json:"content"`
	}{r.Content})
}

type FetcherOptions struct {
	Timeout      time.Duration
	MaxBytes     int64
	MaxRedirects int
	Policy       Policy
	Transport    http.RoundTripper
}

// Fetcher retrieves spec documents from untrusted URLs. It holds no
// per-call state and is safe for concurrent use.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	policy   Policy
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if opts.Policy.AllowedSchemes == nil && opts.Policy.BlockedHostKeywords == nil {
		opts.Policy = DefaultPolicy()
	}
	f := &Fetcher{
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
		policy:   opts.Policy,
	}
	maxRedirects := opts.MaxRedirects
	f.client = &http.Client{
		Transport: opts.Transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if fe := f.policy.checkTarget(req.URL); fe != nil {
				return fe
			}
			return nil
		},
	}
	return f
}

var defaultFetcher = NewFetcher(FetcherOptions{})

// FetchRemoteSpec fetches rawURL with the default policy and limits.
func FetchRemoteSpec(ctx context.Context, rawURL string) Result {
	return defaultFetcher.Fetch(ctx, rawURL)
}

// Fetch performs a single GET of rawURL. It never retries and never
// returns a Go error; failures are reported through Result.Err.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Result {
	target, fe := f.policy.Check(rawURL)
	if fe != nil {
		return Result{Err: fe}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Result{Err: newFetchError(KindMalformedURL, "Invalid URL format")}
	}
	req.Header.Set("Accept", acceptSpec)

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{Err: f.transportError(ctx, err)}
	}
	defer resp.Body.Close()

	if resp.ContentLength > f.maxBytes {
		return Result{Err: newFetchError(KindOversized, fmt.Sprintf("Response too large: %.2fMB (max %s)",
			float64(resp.ContentLength)/(1024*1024), f.limitLabel()))}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{Err: &FetchError{
			Kind:    KindHTTPError,
			Message: fmt.Sprintf("HTTP error %d: %s", resp.StatusCode, statusText(resp)),
			Status:  resp.StatusCode,
		}}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Result{Err: f.transportError(ctx, err)}
	}
	if int64(len(data)) > f.maxBytes {
		return Result{Err: newFetchError(KindOversized, fmt.Sprintf("Response too large (max %s)", f.limitLabel()))}
	}
	return Result{Content: string(data)}
}

func (f *Fetcher) transportError(ctx context.Context, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newFetchError(KindTimeout, fmt.Sprintf("Request timeout (%s exceeded)", durationLabel(f.timeout)))
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	return newFetchError(KindNetworkError, fmt.Sprintf("Failed to fetch spec: %v", err))
}

func (f *Fetcher) limitLabel() string {
	mb := float64(f.maxBytes) / (1024 * 1024)
	return strconv.FormatFloat(mb, 'f', -1, 64) + "MB"
}

func durationLabel(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
