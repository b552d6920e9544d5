package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"emblem/internal/badges"
	"emblem/internal/config"
	"emblem/internal/logging"
	"emblem/internal/runner"
	"emblem/internal/services"
)

const defaultRequestTimeout = 60 * time.Second

// HTTPDoer describes the HTTP client used to reach the render service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client submits render requests over HTTP. It implements runner.Processor.
type Client struct {
	baseURL string
	client  HTTPDoer
	logger  *slog.Logger
}

// NewClient constructs a processor from daemon configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	timeout := defaultRequestTimeout
	if cfg.Render.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Render.RequestTimeout) * time.Second
	}
	return NewHTTPClient(cfg.Render.URL, &http.Client{Timeout: timeout}, logger)
}

// NewHTTPClient constructs a processor with an explicit HTTP client.
func NewHTTPClient(baseURL string, client HTTPDoer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
		logger:  logging.WithComponent(logger, "render"),
	}
}

type renderRequest struct {
	ItemID       string         `json:"item_id"`
	Name         string         `json:"name"`
	Path         string         `json:"path,omitempty"`
	MediaType    string         `json:"media_type,omitempty"`
	Badges       badges.Options `json:"badges"`
	ForceRefresh bool           `json:"force_refresh"`
}

type renderResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// Process renders badges for one item. A 5xx answer or a transport failure is
// tagged unavailable; any other rejection is a plain per-item failure.
func (c *Client) Process(ctx context.Context, item runner.WorkItem, opts badges.Options) error {
	payload := renderRequest{
		ItemID:       item.ID,
		Name:         item.Name,
		Path:         item.Path,
		MediaType:    item.MediaType,
		Badges:       opts,
		ForceRefresh: opts.ForceRefresh,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "render", "submit item", item.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrUnavailable, "render", "submit item",
			fmt.Sprintf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("render rejected %q: %d: %s", item.Name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && err != io.EOF {
		return fmt.Errorf("decode render response: %w", err)
	}
	if result.Status != "" && result.Status != "ok" {
		return fmt.Errorf("render reported %q for %q: %s", result.Status, item.Name, result.Detail)
	}

	c.logger.Debug("item rendered",
		logging.String("item", item.Name),
		logging.String("media_type", item.MediaType),
	)
	return nil
}
