package avoidhelm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avoidance-core/internal/spatial"
)

const headOnScenario = `
name: head-on
start: {x: 0, y: 0, heading: 0, speed: 2}
transit: {heading: 0, speed: 2}
cycles: 160
obstacles:
  - id: ob_1
    poly: "pts={-10,60:10,60:10,80:-10,80}"
`

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario([]byte(headOnScenario))
	require.NoError(t, err)
	assert.Equal(t, 1.0, sc.DT)
	assert.Equal(t, 100.0, sc.Transit.PWT)
	assert.Equal(t, "head-on", sc.Name)

	tests := map[string]string{
		"no cycles":   "start: {x: 0, y: 0}\n",
		"bad heading": "start: {heading: 360}\ncycles: 1\n",
		"no poly":     "cycles: 1\nobstacles:\n  - id: a\n",
		"non-convex":  "cycles: 1\nobstacles:\n  - id: a\n    poly: \"pts={0,0:10,0:5,2:10,10:0,10}\"\n",
		"bad yaml":    "cycles: [1\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadScenario([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestSimulateAvoidsAndResolves(t *testing.T) {
	sc, err := LoadScenario([]byte(headOnScenario))
	require.NoError(t, err)
	poly, _, _, err := spatial.ParsePolygon(sc.Obstacles[0].Poly)
	require.NoError(t, err)

	var seen int
	res, err := Simulate(context.Background(), sc, parseTemplates(t, spawnTemplates), nil, func(SimRow) { seen++ })
	require.NoError(t, err)
	require.Len(t, res.Rows, sc.Cycles)
	assert.Equal(t, sc.Cycles, seen)

	turned := false
	for _, row := range res.Rows {
		assert.False(t, poly.Contains(spatial.Point{X: row.Pose.X, Y: row.Pose.Y}), "cycle %d inside obstacle", row.Cycle)
		if row.Pose.Heading != 0 {
			turned = true
		}
	}
	assert.True(t, turned)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "ob_1", res.Records[0].ObstacleID)
	assert.True(t, res.Records[0].Resolved)
	assert.Greater(t, res.Records[0].CPAEvents+res.Records[0].Cycles, 0)
}

func TestSimulateStopsOnCancel(t *testing.T) {
	sc, err := LoadScenario([]byte(headOnScenario))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Simulate(ctx, sc, parseTemplates(t, spawnTemplates), nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
