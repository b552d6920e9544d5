package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"emblem/internal/store"
)

// ErrDaemonUnavailable marks failures reaching the daemon API at all.
var ErrDaemonUnavailable = errors.New("daemon API unavailable")

// Client talks to a running daemon over its HTTP API. It is the transport
// behind the CLI; all state lives daemon-side.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client from the daemon bind address, accepting either a
// bare host:port or a full URL.
func NewClient(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("daemon bind address required")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse daemon address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base: base,
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// IsDaemonUnavailable reports whether err means the daemon is not reachable,
// as opposed to the daemon rejecting the request.
func IsDaemonUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrDaemonUnavailable) || errors.As(err, &opErr)
}

// ListSchedules fetches every schedule.
func (c *Client) ListSchedules(ctx context.Context) (ScheduleListResponse, error) {
	var out ScheduleListResponse
	err := c.do(ctx, http.MethodGet, "/api/schedules", nil, nil, &out)
	return out, err
}

// GetSchedule fetches one schedule by id or name.
func (c *Client) GetSchedule(ctx context.Context, ref string) (*ScheduleView, error) {
	var out ScheduleView
	if err := c.do(ctx, http.MethodGet, "/api/schedules/"+url.PathEscape(ref), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSchedule registers a new schedule.
func (c *Client) CreateSchedule(ctx context.Context, req ScheduleRequest) (*ScheduleView, error) {
	var out ScheduleView
	if err := c.do(ctx, http.MethodPost, "/api/schedules", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSchedule applies a partial edit to a schedule.
func (c *Client) UpdateSchedule(ctx context.Context, ref string, req ScheduleRequest) (*ScheduleView, error) {
	var out ScheduleView
	if err := c.do(ctx, http.MethodPut, "/api/schedules/"+url.PathEscape(ref), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSchedule removes a schedule, keeping its job history.
func (c *Client) DeleteSchedule(ctx context.Context, ref string) error {
	return c.do(ctx, http.MethodDelete, "/api/schedules/"+url.PathEscape(ref), nil, nil, nil)
}

// SetScheduleEnabled enables or disables a schedule.
func (c *Client) SetScheduleEnabled(ctx context.Context, ref string, enabled bool) (*ScheduleView, error) {
	action := "disable"
	if enabled {
		action = "enable"
	}
	var out ScheduleView
	if err := c.do(ctx, http.MethodPost, "/api/schedules/"+url.PathEscape(ref)+"/"+action, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetSchedulePaused pauses or resumes a schedule's firing.
func (c *Client) SetSchedulePaused(ctx context.Context, ref string, paused bool) (*ScheduleView, error) {
	action := "resume"
	if paused {
		action = "pause"
	}
	var out ScheduleView
	if err := c.do(ctx, http.MethodPost, "/api/schedules/"+url.PathEscape(ref)+"/"+action, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunSchedule triggers a schedule immediately and returns the queued job.
func (c *Client) RunSchedule(ctx context.Context, ref string) (*JobView, error) {
	var out JobResponse
	if err := c.do(ctx, http.MethodPost, "/api/schedules/"+url.PathEscape(ref)+"/run", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// JobQuery narrows a job history listing.
type JobQuery struct {
	Statuses   []string
	ScheduleID string
	Search     string
	Limit      int
	Offset     int
}

// ListJobs fetches a filtered page of job history.
func (c *Client) ListJobs(ctx context.Context, q JobQuery) (JobListResponse, error) {
	values := url.Values{}
	for _, status := range q.Statuses {
		values.Add("status", status)
	}
	if q.ScheduleID != "" {
		values.Set("schedule", q.ScheduleID)
	}
	if strings.TrimSpace(q.Search) != "" {
		values.Set("search", q.Search)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		values.Set("offset", strconv.Itoa(q.Offset))
	}

	var out JobListResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs", values, nil, &out)
	return out, err
}

// GetJob fetches one job plus a page of its items.
func (c *Client) GetJob(ctx context.Context, id string, limit, offset int) (*JobDetail, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		values.Set("offset", strconv.Itoa(offset))
	}
	var out JobDetail
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), values, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JobProgress fetches per-outcome item counts for one job.
func (c *Client) JobProgress(ctx context.Context, id string) (*ProgressView, error) {
	var out ProgressView
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id)+"/progress", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetryJob creates a fresh job from a finished one.
func (c *Client) RetryJob(ctx context.Context, id string) (*JobView, error) {
	var out JobResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/retry", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// CancelJob stops dispatching items for a live job.
func (c *Client) CancelJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, nil, nil)
}

// DeleteJob removes one job and its items.
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, nil, nil)
}

// PruneJobs deletes terminal jobs older than the given age.
func (c *Client) PruneJobs(ctx context.Context, olderThanDays int) (PruneResponse, error) {
	var out PruneResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/prune", nil, PruneRequest{OlderThanDays: olderThanDays}, &out)
	return out, err
}

// Status fetches the daemon runtime overview.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, target any) error {
	if c == nil {
		return ErrDaemonUnavailable
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var payload ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
			if resp.StatusCode == http.StatusNotFound {
				return fmt.Errorf("%s: %w", payload.Error, store.ErrNotFound)
			}
			return errors.New(payload.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
