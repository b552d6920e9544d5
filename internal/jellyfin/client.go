package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"emblem/internal/config"
	"emblem/internal/logging"
	"emblem/internal/runner"
	"emblem/internal/services"
)

const defaultRequestTimeout = 15 * time.Second

// HTTPDoer describes the HTTP client used to reach the Jellyfin server.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the Jellyfin HTTP API. It implements runner.Resolver.
type Client struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
	logger  *slog.Logger
}

// NewClient constructs a resolver from daemon configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	timeout := defaultRequestTimeout
	if cfg.Jellyfin.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Jellyfin.RequestTimeout) * time.Second
	}
	return NewHTTPClient(cfg.Jellyfin.URL, cfg.Jellyfin.APIKey, &http.Client{Timeout: timeout}, logger)
}

// NewHTTPClient constructs a resolver with an explicit HTTP client.
func NewHTTPClient(baseURL, apiKey string, client HTTPDoer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
		logger:  logging.WithComponent(logger, "jellyfin"),
	}
}

type virtualFolder struct {
	Name   string `json:"Name"`
	ItemID string `json:"ItemId"`
}

type libraryItem struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
	Path string `json:"Path"`
	Type string `json:"Type"`
}

type itemsResponse struct {
	Items            []libraryItem `json:"Items"`
	TotalRecordCount int           `json:"TotalRecordCount"`
}

// Resolve expands the given library names into work items. An empty list
// resolves every virtual folder on the server.
func (c *Client) Resolve(ctx context.Context, directories []string) ([]runner.WorkItem, error) {
	folders, err := c.virtualFolders(ctx)
	if err != nil {
		return nil, err
	}

	targets := folders
	if len(directories) > 0 {
		byName := make(map[string]virtualFolder, len(folders))
		for _, folder := range folders {
			byName[strings.ToLower(folder.Name)] = folder
		}
		targets = targets[:0]
		for _, name := range directories {
			folder, ok := byName[strings.ToLower(strings.TrimSpace(name))]
			if !ok {
				return nil, services.Wrap(services.ErrValidation, "jellyfin", "resolve library",
					fmt.Sprintf("library %q not found on server", name), nil)
			}
			targets = append(targets, folder)
		}
	}

	var items []runner.WorkItem
	for _, folder := range targets {
		entries, err := c.folderItems(ctx, folder.ItemID)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			items = append(items, runner.WorkItem{
				ID:        entry.ID,
				Name:      entry.Name,
				Path:      entry.Path,
				MediaType: strings.ToLower(entry.Type),
			})
		}
		c.logger.Debug("library resolved",
			logging.String("library", folder.Name),
			logging.Int("items", len(entries)),
		)
	}
	return items, nil
}

// Ping verifies the server answers at all. Used for a startup health report;
// a failing ping never blocks the daemon.
func (c *Client) Ping(ctx context.Context) error {
	var info struct {
		ServerName string `json:"ServerName"`
		Version    string `json:"Version"`
	}
	return c.getJSON(ctx, "/System/Info/Public", nil, &info)
}

func (c *Client) virtualFolders(ctx context.Context) ([]virtualFolder, error) {
	var folders []virtualFolder
	if err := c.getJSON(ctx, "/Library/VirtualFolders", nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (c *Client) folderItems(ctx context.Context, parentID string) ([]libraryItem, error) {
	query := url.Values{}
	query.Set("ParentId", parentID)
	query.Set("Recursive", "true")
	query.Set("IncludeItemTypes", "Movie,Series")
	query.Set("Fields", "Path")

	var response itemsResponse
	if err := c.getJSON(ctx, "/Items", query, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build jellyfin request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "jellyfin", "fetch "+path, c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrUnavailable, "jellyfin", "fetch "+path,
			fmt.Sprintf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return services.Wrap(services.ErrUnavailable, "jellyfin", "decode "+path, "", err)
	}
	return nil
}
