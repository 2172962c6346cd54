// Package apiclient talks to the onuwatch HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tinytelemetry/onuwatch/internal/model"
)

// StatusError is a non-2xx API response.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("api: %d: %s", e.Code, e.Detail)
}

// Client is a thin typed wrapper over the API routes.
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a client for baseURL. A nil httpClient uses a 30s timeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: u, http: httpClient}, nil
}

// Upload sends the file at path and returns the created job's id.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	return c.UploadBytes(ctx, filepath.Base(path), data)
}

// UploadBytes sends contents as a multipart file named filename.
func (c *Client) UploadBytes(ctx context.Context, filename string, contents []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(contents); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var resp struct {
		JobID string `json:"relatorio_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/upload", nil, mw.FormDataContentType(), &body, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// JobStatus returns the current state of a job.
func (c *Client) JobStatus(ctx context.Context, id string) (model.Job, error) {
	var job model.Job
	err := c.do(ctx, http.MethodGet, "/relatorios/status/"+url.PathEscape(id), nil, "", nil, &job)
	return job, err
}

// Jobs returns the most recent jobs, newest first.
func (c *Client) Jobs(ctx context.Context, limit int) ([]model.Job, error) {
	var jobs []model.Job
	err := c.do(ctx, http.MethodGet, "/relatorios", url.Values{"limit": {strconv.Itoa(limit)}}, "", nil, &jobs)
	return jobs, err
}

// Clients returns one page of records.
func (c *Client) Clients(ctx context.Context, q model.RecordQuery) (model.RecordPage, error) {
	var page model.RecordPage
	err := c.do(ctx, http.MethodGet, "/clients", queryValues(q), "", nil, &page)
	return page, err
}

func queryValues(q model.RecordQuery) url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Region != "" {
		v.Set("region", q.Region)
	}
	if q.MinHours > 0 {
		v.Set("min_hours", strconv.Itoa(q.MinHours))
	}
	if q.SortKey != "" {
		v.Set("sort", q.SortKey)
		if q.SortDesc {
			v.Set("direction", "desc")
		} else {
			v.Set("direction", "asc")
		}
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	return v
}

// DeleteAll removes every record and returns how many were deleted.
func (c *Client) DeleteAll(ctx context.Context) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	err := c.do(ctx, http.MethodDelete, "/clients/all", nil, "", nil, &resp)
	return resp.Deleted, err
}

// DeleteIDs removes the given records.
func (c *Client) DeleteIDs(ctx context.Context, ids []int64) (int64, error) {
	payload, err := json.Marshal(map[string][]int64{"ids": ids})
	if err != nil {
		return 0, err
	}
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	err = c.do(ctx, http.MethodDelete, "/clients", nil, "application/json", bytes.NewReader(payload), &resp)
	return resp.Deleted, err
}

// KPIs returns the headline numbers.
func (c *Client) KPIs(ctx context.Context) (model.KPISummary, error) {
	var kpis model.KPISummary
	err := c.do(ctx, http.MethodGet, "/stats/kpis", nil, "", nil, &kpis)
	return kpis, err
}

// ClientsByCity returns record counts per city.
func (c *Client) ClientsByCity(ctx context.Context, limit int) ([]model.LabelCount, error) {
	var counts []model.LabelCount
	err := c.do(ctx, http.MethodGet, "/stats/cities", url.Values{"limit": {strconv.Itoa(limit)}}, "", nil, &counts)
	return counts, err
}

// ClientsByRegion returns record counts per OLT/region.
func (c *Client) ClientsByRegion(ctx context.Context, limit int) ([]model.LabelCount, error) {
	var counts []model.LabelCount
	err := c.do(ctx, http.MethodGet, "/stats/regions", url.Values{"limit": {strconv.Itoa(limit)}}, "", nil, &counts)
	return counts, err
}

// History returns disconnections per day for the last days.
func (c *Client) History(ctx context.Context, days int) ([]model.DayCount, error) {
	var history []model.DayCount
	err := c.do(ctx, http.MethodGet, "/stats/history", url.Values{"days": {strconv.Itoa(days)}}, "", nil, &history)
	return history, err
}

// Regions returns the distinct OLT/region labels.
func (c *Client) Regions(ctx context.Context) ([]string, error) {
	var regions []string
	err := c.do(ctx, http.MethodGet, "/regions", nil, "", nil, &regions)
	return regions, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Code: resp.StatusCode}
		var payload struct {
			Detail string `json:"detail"`
		}
		if raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil {
			if json.Unmarshal(raw, &payload) == nil {
				se.Detail = payload.Detail
			}
		}
		return se
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
