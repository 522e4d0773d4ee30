// Package remote implements the store driver against the registrar's HTTP
// schedule API. The API is tolerated rather than trusted: list responses may
// be a bare JSON array or an envelope, and record fields are left as sent.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/hrygo/timetable/internal/profile"
	"github.com/hrygo/timetable/store"
)

// envelopeKeys are the wrapper keys under which list responses may carry records.
var envelopeKeys = []string{"data", "items", "results", "schedules"}

// Config configures the remote driver.
type Config struct {
	BaseURL   string
	Token     string
	RateLimit float64 // requests per second, zero means unlimited
	Timeout   time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// DB is the remote schedule API driver.
type DB struct {
	baseURL *url.URL
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewDB creates the driver from the profile.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	d, err := New(Config{
		BaseURL:   profile.RemoteURL,
		Token:     profile.RemoteToken,
		RateLimit: profile.RemoteRateLimit,
		Timeout:   profile.RemoteTimeout,
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// New creates the driver from an explicit config.
func New(cfg Config) (*DB, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("remote base url required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid remote base url %q", cfg.BaseURL)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &DB{
		baseURL: base,
		token:   cfg.Token,
		client:  client,
		limiter: limiter,
	}, nil
}

func (d *DB) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *DB) ListRecords(ctx context.Context, find *store.FindRecord) ([]store.Record, error) {
	query := url.Values{}
	if find.SchoolYear != "" {
		query.Set("school_year", find.SchoolYear)
	}
	if find.Semester != "" {
		query.Set("semester", find.Semester)
	}

	body, err := d.do(ctx, http.MethodGet, "/schedules", query, nil)
	if err != nil {
		return nil, err
	}
	return decodeList(body)
}

func (d *DB) CreateRecord(ctx context.Context, create *store.CreateRecord) (store.Record, error) {
	payload, err := json.Marshal(create)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode schedule record")
	}
	body, err := d.do(ctx, http.MethodPost, "/schedules", nil, payload)
	if err != nil {
		return nil, err
	}
	return decodeOne(body)
}

func (d *DB) DeleteRecord(ctx context.Context, delete *store.DeleteRecord) error {
	_, err := d.do(ctx, http.MethodDelete, "/schedules/"+url.PathEscape(delete.ID), nil, nil)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return store.ErrNotFound
	}
	return err
}

func (d *DB) do(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit wait")
	}

	u := *d.baseURL
	u.Path = u.Path + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, u.Path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{Method: method, URL: u.Path, StatusCode: resp.StatusCode, Body: snippet}
	}
	return body, nil
}

func decodeList(body []byte) ([]store.Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []store.Record{}, nil
	}

	if body[0] == '[' {
		var list []store.Record
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, errors.Wrap(err, "failed to decode schedule list")
		}
		return compact(list), nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrap(err, "failed to decode schedule list")
	}
	for _, key := range envelopeKeys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		return decodeList(raw)
	}
	return nil, errors.New("schedule list response has no recognizable records field")
}

func decodeOne(body []byte) (store.Record, error) {
	var rec store.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, errors.Wrap(err, "failed to decode schedule record")
	}
	if inner, ok := rec["data"].(map[string]any); ok {
		return store.Record(inner), nil
	}
	return rec, nil
}

// compact drops null entries some backends emit for deleted rows.
func compact(list []store.Record) []store.Record {
	out := list[:0]
	for _, rec := range list {
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out
}
