// Package redcap is a minimal client for REDCap's web API, covering the
// project metadata and record export calls the sample-ingest pipeline needs.
package redcap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/specimenhub-backend/internal/platform/envutil"
	"github.com/yungbote/specimenhub-backend/internal/platform/httpx"
	"github.com/yungbote/specimenhub-backend/internal/platform/logger"
)

// Record is one flat REDCap export row. Longitudinal projects and repeating
// instruments return several rows per record id, differentiated by the
// redcap_event_name / redcap_repeat_instrument / redcap_repeat_instance
// fields.
type Record map[string]any

// RecordOptions narrows a record export.
type RecordOptions struct {
	// SinceDate limits records to those created or modified after the given
	// timestamp, formatted "YYYY-MM-DD HH:MM:SS" in the REDCap server's
	// configured timezone.
	SinceDate string
	// IDs limits the export to the given record ids.
	IDs []string
	// Raw returns numeric codes for multiple choice fields instead of the
	// default string labels.
	Raw bool
}

// Client talks to one REDCap project. Tokens are project-specific, so a
// client is bound to the project its token unlocks.
type Client interface {
	ID() int64
	Title() string
	BaseURL() string
	Instruments(ctx context.Context) ([]string, error)
	Record(ctx context.Context, recordID string) ([]Record, error)
	Records(ctx context.Context, opts RecordOptions) ([]Record, error)
}

type Config struct {
	APIURL     string
	APIToken   string
	ProjectID  int64
	Timeout    time.Duration
	MaxRetries int
	// ChunkSize bounds how many record ids go into a single export request
	// when fetching by id. Large projects time out on one big request.
	ChunkSize int
}

func ConfigFromEnv() Config {
	return Config{
		APIURL:     strings.TrimSpace(envutil.String("REDCAP_API_URL", "")),
		APIToken:   strings.TrimSpace(envutil.String("REDCAP_API_TOKEN", "")),
		ProjectID:  int64(envutil.Int("REDCAP_PROJECT_ID", 0)),
		Timeout:    time.Duration(envutil.Int("REDCAP_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxRetries: envutil.Int("REDCAP_MAX_RETRIES", 4),
		ChunkSize:  envutil.Int("REDCAP_EXPORT_CHUNK_SIZE", 100),
	}
}

var apiSuffixRe = regexp.MustCompile(`api/?$`)

type project struct {
	cfg     Config
	log     *logger.Logger
	http    *http.Client
	baseURL string

	id    int64
	title string

	// mu guards instruments; the project cache hands one client to many
	// goroutines.
	mu          sync.Mutex
	instruments []string
}

// New builds a client and verifies the token against the expected project
// id. Tokens are per-project, so a mismatch means the caller configured the
// wrong token; refusing up front beats silently reading another project's
// data.
func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("missing REDCAP_API_URL")
	}
	cfg.APIToken = strings.TrimSpace(cfg.APIToken)
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("missing REDCAP_API_TOKEN")
	}
	if cfg.ProjectID <= 0 {
		return nil, fmt.Errorf("missing REDCAP_PROJECT_ID")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}

	p := &project{
		cfg:  cfg,
		log:  log.With("component", "redcap", "project_id", cfg.ProjectID),
		http: &http.Client{Timeout: cfg.Timeout},
		// A REDCap instance's base url is its API url minus the trailing
		// "api/" segment.
		baseURL: apiSuffixRe.ReplaceAllString(cfg.APIURL, ""),
	}

	var details struct {
		ProjectID    int64  `json:"project_id"`
		ProjectTitle string `json:"project_title"`
	}
	if err := p.fetch(context.Background(), "project", nil, &details); err != nil {
		return nil, fmt.Errorf("fetching project details: %w", err)
	}
	if details.ProjectID != cfg.ProjectID {
		return nil, fmt.Errorf(
			"redcap token provided for project %d is actually for project %d (%q)",
			cfg.ProjectID, details.ProjectID, details.ProjectTitle)
	}
	p.id = details.ProjectID
	p.title = details.ProjectTitle
	return p, nil
}

func (p *project) ID() int64       { return p.id }
func (p *project) Title() string   { return p.title }
func (p *project) BaseURL() string { return p.baseURL }

// Instruments returns the names of all instruments in the project, fetched
// once and memoized for the client's lifetime.
func (p *project) Instruments(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.instruments != nil {
		return p.instruments, nil
	}
	var rows []struct {
		InstrumentName string `json:"instrument_name"`
	}
	if err := p.fetch(ctx, "instrument", nil, &rows); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.InstrumentName)
	}
	p.instruments = names
	return names, nil
}

// Record fetches one record id with all its instruments. More than one row
// comes back for longitudinal or repeating-instrument projects.
func (p *project) Record(ctx context.Context, recordID string) ([]Record, error) {
	return p.Records(ctx, RecordOptions{IDs: []string{recordID}})
}

// Records exports records for the project. Id-filtered exports are chunked
// and fetched concurrently; results keep the request's id order across
// chunks.
func (p *project) Records(ctx context.Context, opts RecordOptions) ([]Record, error) {
	if len(opts.IDs) > p.cfg.ChunkSize {
		return p.recordsChunked(ctx, opts)
	}
	return p.exportRecords(ctx, opts)
}

func (p *project) recordsChunked(ctx context.Context, opts RecordOptions) ([]Record, error) {
	var chunks [][]string
	for start := 0; start < len(opts.IDs); start += p.cfg.ChunkSize {
		end := start + p.cfg.ChunkSize
		if end > len(opts.IDs) {
			end = len(opts.IDs)
		}
		chunks = append(chunks, opts.IDs[start:end])
	}

	results := make([][]Record, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, chunk := range chunks {
		g.Go(func() error {
			chunkOpts := opts
			chunkOpts.IDs = chunk
			rows, err := p.exportRecords(gctx, chunkOpts)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Record
	for _, rows := range results {
		merged = append(merged, rows...)
	}
	return merged, nil
}

func (p *project) exportRecords(ctx context.Context, opts RecordOptions) ([]Record, error) {
	params := url.Values{}
	params.Set("type", "flat")
	params.Set("exportCheckboxLabel", "true")
	if opts.Raw {
		params.Set("rawOrLabel", "raw")
	} else {
		params.Set("rawOrLabel", "label")
	}
	if opts.SinceDate != "" {
		params.Set("dateRangeBegin", opts.SinceDate)
	}
	if len(opts.IDs) > 0 {
		params.Set("records", strings.Join(opts.IDs, ","))
	}

	var rows []Record
	if err := p.fetch(ctx, "record", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// fetch POSTs a form-encoded REDCap API request for the given content type
// and decodes the JSON response into out. Transient failures are retried
// with jittered backoff.
func (p *project) fetch(ctx context.Context, content string, params url.Values, out any) error {
	form := url.Values{}
	for key, vals := range params {
		for _, v := range vals {
			form.Add(key, v)
		}
	}
	form.Set("content", content)
	form.Set("token", p.cfg.APIToken)
	form.Set("format", "json")

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := httpx.JitterSleep(time.Duration(attempt) * 500 * time.Millisecond)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, retryable, err := p.post(ctx, form)
		if err == nil {
			if decErr := json.Unmarshal(body, out); decErr != nil {
				return fmt.Errorf("decoding redcap %s response: %w", content, decErr)
			}
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
		p.log.Warn("redcap request failed, retrying",
			"content", content, "attempt", attempt+1, "error", err.Error())
	}
	return fmt.Errorf("redcap %s request failed after %d attempts: %w",
		content, p.cfg.MaxRetries+1, lastErr)
}

func (p *project) post(ctx context.Context, form url.Values) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, httpx.IsRetryableError(err), err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, true, err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("redcap api returned %d: %s", resp.StatusCode, truncate(string(body), 200))
		if httpx.IsRetryableStatus(resp.StatusCode) {
			// Rate-limited responses carry a Retry-After worth honoring.
			wait := httpx.RetryAfterDuration(resp, 0, 30*time.Second)
			if wait > 0 {
				select {
				case <-ctx.Done():
					return nil, false, ctx.Err()
				case <-time.After(wait):
				}
			}
			return nil, true, err
		}
		return nil, false, err
	}
	return body, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// InstrumentStatus codes used by REDCap for the generated
// "<instrument>_complete" field.
const (
	StatusIncomplete = 0
	StatusUnverified = 1
	StatusComplete   = 2
)

// IsComplete tests whether the named instrument is marked complete in the
// given data, which may be a DET notification or an exported record. REDCap
// represents the status as a label, a number, or a numeric string depending
// on the export mode.
func IsComplete(instrument string, data Record) bool {
	switch v := data[instrument+"_complete"].(type) {
	case string:
		return v == "Complete" || v == strconv.Itoa(StatusComplete)
	case float64:
		return int(v) == StatusComplete
	case int:
		return v == StatusComplete
	default:
		return false
	}
}
