// internal/encounter/graph.go

package encounter

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// runner executes one write query.
type runner interface {
	run(ctx context.Context, query string, params map[string]any) error
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (d driverRunner) run(ctx context.Context, query string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, d.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(d.database),
		neo4j.ExecuteQueryWithWritersRouting())
	return err
}

// Graph links vehicles to the obstacles they encountered:
// (Vehicle)-[:ENCOUNTERED]->(Obstacle), one relationship per record.
type Graph struct {
	exec   runner
	driver neo4j.DriverWithContext
}

// NewGraph connects to Neo4j and checks connectivity.
func NewGraph(ctx context.Context, uri, user, password string) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver creation failed: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity test failed: %w", err)
	}
	return &Graph{exec: driverRunner{driver: driver, database: "neo4j"}, driver: driver}, nil
}

const recordQuery = `
MERGE (v:Vehicle {id: $vehicle_id})
MERGE (o:Obstacle {id: $obstacle_id})
SET o.label = $label
CREATE (v)-[e:ENCOUNTERED {id: $id}]->(o)
SET e += $props
`

func (g *Graph) Record(ctx context.Context, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	err := g.exec.run(ctx, recordQuery, map[string]any{
		"vehicle_id":  r.VehicleID,
		"obstacle_id": r.ObstacleKey(),
		"label":       r.Label,
		"id":          r.ID,
		"props": map[string]any{
			"behavior":      r.Behavior,
			"min_range":     r.MinRange,
			"cpa_events":    int64(r.CPAEvents),
			"max_relevance": r.MaxRelevance,
			"side_locked":   r.SideLocked,
			"resolved":      r.Resolved,
			"cycles":        int64(r.Cycles),
			"started_at":    r.StartedAt,
			"ended_at":      r.EndedAt,
		},
	})
	if err != nil {
		return fmt.Errorf("record encounter %s in graph: %w", r.ID, err)
	}
	return nil
}

// Close releases the driver.
func (g *Graph) Close(ctx context.Context) error {
	if g.driver == nil {
		return nil
	}
	return g.driver.Close(ctx)
}
