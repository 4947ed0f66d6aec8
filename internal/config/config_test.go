package config

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avoidance-core/internal/behavior"
	"avoidance-core/internal/minio"
	"avoidance-core/internal/schema"
)

const alphaYAML = `
vehicle: alpha
domain: "course,0,359,360:speed,0,5,21"
alert_range: 60
behaviors:
  - type: BHV_AvoidObstacleV24
    name: avd_obstacle
    templating: spawn
    updates: OBSTACLE_UPDATE
    condition: DEPLOY=true and AVOID=true
    params:
      - {name: pwt_outer_dist, value: 50}
      - {name: pwt_inner_dist, value: 20}
      - {name: use_refinery, value: true}
`

func templateValidator(t *testing.T) *schema.Validator {
	t.Helper()
	v, err := schema.NewTemplateValidator()
	require.NoError(t, err)
	return v
}

func TestParseTemplates(t *testing.T) {
	ts, err := Parse([]byte(alphaYAML), templateValidator(t))
	require.NoError(t, err)
	assert.Equal(t, "alpha", ts.Vehicle)
	assert.Equal(t, 60.0, ts.AlertRange)

	tpl, ok := ts.Find("avd_obstacle")
	require.True(t, ok)
	assert.True(t, tpl.Spawn())
	assert.Equal(t, []behavior.Param{
		{Name: "name", Value: "avd_obstacle"},
		{Name: "templating", Value: "spawn"},
		{Name: "updates", Value: "OBSTACLE_UPDATE"},
		{Name: "pwt_outer_dist", Value: "50"},
		{Name: "pwt_inner_dist", Value: "20"},
		{Name: "use_refinery", Value: "true"},
	}, tpl.BehaviorParams())

	d, err := ts.ParsedDomain()
	require.NoError(t, err)
	assert.Equal(t, 2, d.Size())
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"bad yaml":        "vehicle: [alpha",
		"no behaviors":    "vehicle: alpha\ndomain: \"course,0,359,360\"\nbehaviors: []\n",
		"unknown type":    "vehicle: alpha\ndomain: \"course,0,359,360\"\nbehaviors:\n  - {type: BHV_Loiter, name: l}\n",
		"bad domain":      "vehicle: alpha\ndomain: \"course,0\"\nbehaviors:\n  - {type: BHV_AvoidObstacleV24, name: a}\n",
		"bad condition":   "vehicle: alpha\ndomain: \"course,0,359,360\"\nbehaviors:\n  - {type: BHV_AvoidObstacleV24, name: a, condition: DEPLOY}\n",
		"empty param":     "vehicle: alpha\ndomain: \"course,0,359,360\"\nbehaviors:\n  - {type: BHV_AvoidObstacleV24, name: a, params: [{name: \"\", value: 1}]}\n",
		"bad templating":  "vehicle: alpha\ndomain: \"course,0,359,360\"\nbehaviors:\n  - {type: BHV_AvoidObstacleV24, name: a, templating: clone}\n",
		"missing vehicle": "domain: \"course,0,359,360\"\nbehaviors:\n  - {type: BHV_AvoidObstacleV24, name: a}\n",
	}
	v := templateValidator(t)
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), v)
			assert.Error(t, err)
			_, err = Parse([]byte(doc), nil)
			assert.Error(t, err, "struct validation alone must reject it too")
		})
	}
}

func TestMerge(t *testing.T) {
	base, err := Parse([]byte(alphaYAML), nil)
	require.NoError(t, err)
	override := &Templates{
		AlertRange: 80,
		Behaviors: []Template{
			{Name: "avd_obstacle", Condition: "DEPLOY=true", Params: []behavior.Param{{Name: "pwt_outer_dist", Value: "70"}}},
			{Type: "BHV_AvoidObstacleV24", Name: "avd_pier", Templating: "static", Params: []behavior.Param{{Name: "poly", Value: "pts={0,0:5,0:5,5},label=pier"}}},
		},
	}

	merged := Merge(base, override)
	assert.Equal(t, 80.0, merged.AlertRange)
	require.Len(t, merged.Behaviors, 2)
	avd := merged.Behaviors[0]
	assert.Equal(t, "DEPLOY=true", avd.Condition)
	assert.Equal(t, behavior.Param{Name: "pwt_outer_dist", Value: "70"}, avd.Params[len(avd.Params)-1])
	assert.Len(t, base.Behaviors[0].Params, 3, "base must not be modified")
	assert.Equal(t, "DEPLOY=true and AVOID=true", base.Behaviors[0].Condition)

	assert.Same(t, base, Merge(base, nil))
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    int
}

var _ minio.ObjectStore = (*fakeObjects)(nil)

func (f *fakeObjects) PutObject(_ context.Context, bucket, object string, data io.Reader, _ int64) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+object] = b
	return nil
}

func (f *fakeObjects) GetObject(_ context.Context, bucket, object string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	b, ok := f.objects[bucket+"/"+object]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return b, nil
}

func (f *fakeObjects) ListObjects(context.Context, string, string) ([]minio.ObjectInfo, error) {
	return nil, nil
}

func TestStoreLoadCachesAndMergesOverride(t *testing.T) {
	objs := &fakeObjects{objects: map[string][]byte{}}
	ctx := context.Background()
	require.NoError(t, objs.PutObject(ctx, "helm", "templates/alpha.yaml", bytes.NewReader([]byte(alphaYAML)), -1))
	override := "behaviors:\n  - name: avd_obstacle\n    params:\n      - {name: completed_dist, value: 90}\n"
	require.NoError(t, objs.PutObject(ctx, "helm", "overrides/alpha.yaml", bytes.NewReader([]byte(override)), -1))

	s := NewStore(ctx, objs, "helm", templateValidator(t), 0, nil)
	ts, err := s.Load(ctx, "alpha")
	require.NoError(t, err)
	params := ts.Behaviors[0].Params
	assert.Equal(t, behavior.Param{Name: "completed_dist", Value: "90"}, params[len(params)-1])

	gets := objs.gets
	again, err := s.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Same(t, ts, again)
	assert.Equal(t, gets, objs.gets)

	s.Invalidate()
	_, err = s.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Greater(t, objs.gets, gets)
}

func TestStoreLoadErrors(t *testing.T) {
	objs := &fakeObjects{objects: map[string][]byte{}}
	ctx := context.Background()
	s := NewStore(ctx, objs, "helm", nil, 0, nil)

	_, err := s.Load(ctx, "bravo")
	assert.ErrorContains(t, err, "templates/bravo.yaml")

	require.NoError(t, objs.PutObject(ctx, "helm", "templates/bravo.yaml", bytes.NewReader([]byte(alphaYAML)), -1))
	_, err = s.Load(ctx, "bravo")
	assert.ErrorContains(t, err, "for vehicle alpha")
}

func TestStoreBackgroundRefresh(t *testing.T) {
	objs := &fakeObjects{objects: map[string][]byte{}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, objs.PutObject(ctx, "helm", "templates/alpha.yaml", bytes.NewReader([]byte(alphaYAML)), -1))

	s := NewStore(ctx, objs, "helm", nil, 10*time.Millisecond, nil)
	first, err := s.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		next, err := s.Load(ctx, "alpha")
		return err == nil && next != first
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFileLoaderWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alpha.yaml")
	require.NoError(t, os.WriteFile(path, []byte(alphaYAML), 0o644))

	fl := FileLoader{Path: path, Validator: templateValidator(t)}
	ts, err := fl.Load(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, 60.0, ts.AlertRange)

	_, err = fl.Load(context.Background(), "bravo")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *Templates, 8)
	done := make(chan error, 1)
	go func() {
		done <- fl.Watch(ctx, "alpha", func(ts *Templates) { changes <- ts }, nil)
	}()

	updated := []byte(alphaYAML + "  - {type: BHV_AvoidObstacleV24, name: avd_pier}\n")
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for got := false; !got; {
		select {
		case ts := <-changes:
			if len(ts.Behaviors) == 2 {
				got = true
			}
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, updated, 0o644))
		case <-deadline:
			t.Fatal("no reload seen")
		}
	}

	cancel()
	assert.NoError(t, <-done)
}
