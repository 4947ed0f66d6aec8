package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_AllVariablesNonNil(t *testing.T) {
	t.Parallel()

	vars := []struct {
		name string
		val  any
	}{
		{"CyclesTotal", CyclesTotal},
		{"CycleLatency", CycleLatency},
		{"MailApplied", MailApplied},
		{"ActiveBehaviors", ActiveBehaviors},
		{"BehaviorsSpawned", BehaviorsSpawned},
		{"SpawnErrors", SpawnErrors},
		{"FunctionsEmitted", FunctionsEmitted},
		{"WarningsPosted", WarningsPosted},
		{"EncounterEvents", EncounterEvents},
		{"Relevance", Relevance},
		{"PublishErrors", PublishErrors},
	}
	for _, v := range vars {
		assert.NotNilf(t, v.val, "%s should not be nil", v.name)
	}
}

func TestMetrics_CountersAccumulate(t *testing.T) {
	t.Parallel()

	c := CyclesTotal.WithLabelValues("metrics-test")
	before := testutil.ToFloat64(c)
	c.Inc()
	c.Inc()
	assert.Equal(t, before+2, testutil.ToFloat64(c))

	ev := EncounterEvents.WithLabelValues("metrics-test", "cpa")
	ev.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(ev))

	ActiveBehaviors.WithLabelValues("metrics-test").Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(ActiveBehaviors.WithLabelValues("metrics-test")))
}

func TestMetrics_ObserveNoPanic(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { CycleLatency.WithLabelValues("metrics-test").Observe(0.002) })
	assert.NotPanics(t, func() { Relevance.WithLabelValues("metrics-test").Observe(0.75) })
}
