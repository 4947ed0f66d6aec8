package encounter

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avoidance-core/internal/behavior"
	"avoidance-core/internal/minio"
)

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ minio.ObjectStore = (*memObjects)(nil)

func (m *memObjects) PutObject(_ context.Context, bucket, object string, data io.Reader, _ int64) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+object] = b
	return nil
}

func (m *memObjects) GetObject(_ context.Context, bucket, object string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[bucket+"/"+object]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return b, nil
}

func (m *memObjects) ListObjects(_ context.Context, bucket, prefix string) ([]minio.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []minio.ObjectInfo
	for k, v := range m.objects {
		if key, ok := strings.CutPrefix(k, bucket+"/"); ok && strings.HasPrefix(key, prefix) {
			out = append(out, minio.ObjectInfo{Key: key, Size: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func sampleRecord() Record {
	started := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	return NewRecord("alpha", "avd_obstacle_ob_1", behavior.Encounter{
		ObstacleID:   "ob_1",
		Label:        "ob_1",
		MinRange:     12.5,
		CPAEvents:    1,
		MaxRelevance: 0.8,
		SideLocked:   true,
		Resolved:     true,
		Cycles:       140,
	}, []behavior.Event{{Kind: "cpa", Range: 12.5}, {Kind: "resolved", Range: 12.5}}, started, started.Add(70*time.Second))
}

func TestNewRecord(t *testing.T) {
	r := sampleRecord()
	assert.Len(t, r.ID, 36)
	assert.Equal(t, "ob_1", r.ObstacleKey())
	require.NoError(t, r.Validate())

	r.ObstacleID = ""
	assert.Equal(t, "ob_1", r.ObstacleKey())
	r.Label = ""
	assert.ErrorContains(t, r.Validate(), "missing required fields")
}

func TestArchiveRoundTrip(t *testing.T) {
	objs := &memObjects{objects: map[string][]byte{}}
	a := NewArchive(objs, "encounters")
	ctx := context.Background()

	r := sampleRecord()
	require.NoError(t, a.Record(ctx, r))
	assert.Contains(t, objs.objects, "encounters/encounters/alpha/2026-10-17/"+r.ID+".json")

	got, err := a.List(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r, got[0])

	none, err := a.List(ctx, "bravo")
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Error(t, a.Record(ctx, Record{}))
}

type fakeRunner struct {
	queries []string
	params  []map[string]any
	err     error
}

func (f *fakeRunner) run(_ context.Context, query string, params map[string]any) error {
	f.queries = append(f.queries, query)
	f.params = append(f.params, params)
	return f.err
}

func TestGraphRecord(t *testing.T) {
	fr := &fakeRunner{}
	g := &Graph{exec: fr}
	r := sampleRecord()
	require.NoError(t, g.Record(context.Background(), r))

	require.Len(t, fr.queries, 1)
	assert.Contains(t, fr.queries[0], "[e:ENCOUNTERED")
	p := fr.params[0]
	assert.Equal(t, "alpha", p["vehicle_id"])
	assert.Equal(t, "ob_1", p["obstacle_id"])
	props := p["props"].(map[string]any)
	assert.Equal(t, int64(1), props["cpa_events"])
	assert.Equal(t, true, props["side_locked"])

	fr.err = errors.New("unavailable")
	assert.ErrorContains(t, g.Record(context.Background(), r), "unavailable")
	assert.NoError(t, g.Close(context.Background()))
}

type failing struct{ err error }

func (f failing) Record(context.Context, Record) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	objs := &memObjects{objects: map[string][]byte{}}
	boom := errors.New("boom")
	m := Multi{NewArchive(objs, "b"), failing{err: boom}, Discard{}}

	err := m.Record(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, objs.objects, 1, "healthy sinks still record")
}
