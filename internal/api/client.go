// Package api is the HTTP client for the mission execution backend. Every
// response travels in a {code, data, msg} envelope where code 200 means
// success; anything else surfaces as a BusinessError carrying msg verbatim,
// and transport failures surface as a TransportError with a fixed message.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediaforge/batchctl/internal/domain"
)

const defaultTimeout = 30 * time.Second

// submitZone is the fixed offset the backend expects for scheduled_time
var submitZone = time.FixedZone("UTC+8", 8*60*60)

// Client talks to the execution backend
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a backend client. baseURL must not have a trailing slash.
func New(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log.With().Str("component", "api").Logger(),
	}
}

// envelope is the backend's response wrapper
type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

// do executes a request and decodes the envelope data into out (out may be
// nil for calls whose payload is ignored).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("path", path).Msg("transport failure")
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &TransportError{Err: fmt.Errorf("decoding response: %w", err)}
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("code", env.Code).
		Dur("elapsed", time.Since(start)).
		Msg("request")

	if env.Code != http.StatusOK {
		return &BusinessError{Code: env.Code, Msg: env.Msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding data: %w", err)
		}
	}
	return nil
}

// SubmitConfig is the config block of a submission payload
type SubmitConfig struct {
	AspectRatio string            `json:"aspectRatio,omitempty"`
	Duration    string            `json:"duration,omitempty"`
	BatchInput  []domain.JobInput `json:"batch_input"`
}

// SubmitRequest is one mission submission
type SubmitRequest struct {
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	ModelID       string       `json:"model_id,omitempty"`
	TaskType      string       `json:"task_type"`
	Config        SubmitConfig `json:"config"`
	ScheduledTime string       `json:"scheduled_time,omitempty"`
}

// SubmitResult is the backend's answer to a submission
type SubmitResult struct {
	MissionID string `json:"mission_id"`
}

// FormatScheduledTime renders a schedule timestamp in the fixed +08:00
// offset the backend expects.
func FormatScheduledTime(t time.Time) string {
	return t.In(submitZone).Format(time.RFC3339)
}

// SubmitMission submits a mission. A scheduled time earlier than now is
// rejected before any network call.
func (c *Client) SubmitMission(ctx context.Context, req SubmitRequest, scheduledAt *time.Time) (*SubmitResult, error) {
	if scheduledAt != nil {
		if scheduledAt.Before(time.Now()) {
			return nil, fmt.Errorf("scheduled time %s is in the past", scheduledAt.Format(time.RFC3339))
		}
		req.ScheduledTime = FormatScheduledTime(*scheduledAt)
	}

	var result SubmitResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/missions", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListMissions returns one page of missions, optionally filtered by status.
// Pages are 1-indexed; a page past the end returns an empty, non-error page.
func (c *Client) ListMissions(ctx context.Context, page, pageSize int, status string) (*domain.MissionPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if status != "" {
		q.Set("status", status)
	}

	var result domain.MissionPage
	if err := c.do(ctx, http.MethodGet, "/api/v1/missions", q, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetMission fetches one mission's metadata
func (c *Client) GetMission(ctx context.Context, id string) (*domain.Mission, error) {
	var m domain.Mission
	if err := c.do(ctx, http.MethodGet, "/api/v1/missions/"+id, nil, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMissionItems fetches the item records for a mission
func (c *Client) ListMissionItems(ctx context.Context, id string) ([]domain.MissionItem, error) {
	var items []domain.MissionItem
	if err := c.do(ctx, http.MethodGet, "/api/v1/missions/"+id+"/items", nil, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CancelMission cancels queued work and returns how many queued items were
// cancelled. Completed and failed items are untouched.
func (c *Client) CancelMission(ctx context.Context, id string) (int, error) {
	var result struct {
		CancelledCount int `json:"cancelled_count"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/missions/"+id+"/cancel", nil, nil, &result); err != nil {
		return 0, err
	}
	return result.CancelledCount, nil
}

// RetryMission re-queues all failed items and returns how many were
// re-queued. Zero is a valid, successful answer.
func (c *Client) RetryMission(ctx context.Context, id string) (int, error) {
	var result struct {
		RetryCount int `json:"retry_count"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/missions/"+id+"/retry", nil, nil, &result); err != nil {
		return 0, err
	}
	return result.RetryCount, nil
}

// DeleteMission removes a mission from subsequent listings. Irreversible.
func (c *Client) DeleteMission(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/missions/"+id, nil, nil, nil)
}

// DownloadURL returns the redirectable URL of the server-produced result zip
func (c *Client) DownloadURL(ctx context.Context, id string) (string, error) {
	var result struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/missions/"+id+"/download", nil, nil, &result); err != nil {
		return "", err
	}
	return result.URL, nil
}

// FetchFile streams a URL to destDir and returns the saved path
func (c *Client) FetchFile(ctx context.Context, fileURL, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	name := filepath.Base(fileURL)
	if name == "." || name == "/" {
		name = "results.zip"
	}
	dest := filepath.Join(destDir, name)

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", err
	}
	return dest, nil
}

// Model is one entry of the backend's model catalog
type Model struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Platform     string   `json:"platform"`
	TaskTypes    []string `json:"task_types"`
	AspectRatios []string `json:"aspect_ratios"`
	Durations    []string `json:"durations"`
}

// Platform is one entry of the backend's platform catalog
type Platform struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// ListModels fetches the model capability catalog
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var models []Model
	if err := c.do(ctx, http.MethodGet, "/api/v1/models", nil, nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// ListPlatforms fetches the platform catalog
func (c *Client) ListPlatforms(ctx context.Context) ([]Platform, error) {
	var platforms []Platform
	if err := c.do(ctx, http.MethodGet, "/api/v1/platforms", nil, nil, &platforms); err != nil {
		return nil, err
	}
	return platforms, nil
}
