package runner

import (
	"context"

	"emblem/internal/badges"
)

// WorkItem is one media entry to process, produced by the resolver.
type WorkItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// Resolver expands target library names into concrete work items. An empty
// directories slice means every library. Implementations must distinguish an
// unreachable source (an error satisfying services.IsUnavailable) from a
// reachable source with nothing to process (empty slice, nil error).
type Resolver interface {
	Resolve(ctx context.Context, directories []string) ([]WorkItem, error)
}

// Processor applies badge rendering to a single work item.
type Processor interface {
	Process(ctx context.Context, item WorkItem, opts badges.Options) error
}
