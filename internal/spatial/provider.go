// internal/spatial/provider.go

package spatial

import (
	"context"
	"fmt"
	"sort"
)

// ObstacleProvider supplies obstacle polygons by id.
type ObstacleProvider interface {
	Obstacles(ctx context.Context) (map[string]Polygon, error)
	Obstacle(ctx context.Context, id string) (Polygon, error)
}

// StaticProvider serves a fixed set of obstacles, for scenarios and tests.
type StaticProvider map[string]Polygon

func (sp StaticProvider) Obstacles(_ context.Context) (map[string]Polygon, error) {
	out := make(map[string]Polygon, len(sp))
	for id, p := range sp {
		out[id] = p.Clone()
	}
	return out, nil
}

func (sp StaticProvider) Obstacle(_ context.Context, id string) (Polygon, error) {
	if p, ok := sp[id]; ok {
		return p.Clone(), nil
	}
	return nil, fmt.Errorf("obstacle not found: %s", id)
}

// IDs returns the obstacle ids in sorted order.
func (sp StaticProvider) IDs() []string {
	ids := make([]string, 0, len(sp))
	for id := range sp {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
