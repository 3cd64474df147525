package application

import (
	"fmt"
	"sync"
	"testing"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/bnema/buswork-cli/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAggregatorPreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	log := NewLogAggregator()
	log.Append("job accepted")
	log.Append("50% done")
	log.Append("done")

	assert.Equal(t, []domain.LogEntry{"job accepted", "50% done", "done"}, log.Snapshot())
	assert.Equal(t, 3, log.Len())
}

func TestLogAggregatorSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	log := NewLogAggregator()
	log.Append("one")

	snapshot := log.Snapshot()
	snapshot[0] = "mutated"
	log.Append("two")

	assert.Equal(t, []domain.LogEntry{"one", "two"}, log.Snapshot())
	assert.Len(t, snapshot, 1)
}

func TestLogAggregatorClear(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	log := NewLogAggregator(WithMetrics(metrics))
	log.Append("one")
	log.Append("two")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LogEntries))

	log.Clear()

	assert.Empty(t, log.Snapshot())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.LogEntries))
}

func TestLogAggregatorConcurrentAppendsLoseNothing(t *testing.T) {
	t.Parallel()

	log := NewLogAggregator()
	const producers, perProducer = 8, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				log.Append(fmt.Sprintf("%d-%d", p, i))
			}
		}(p)
	}
	wg.Wait()

	snapshot := log.Snapshot()
	require.Len(t, snapshot, producers*perProducer)

	// Each producer's own entries keep their relative order.
	last := make(map[int]int)
	for _, entry := range snapshot {
		var p, i int
		_, err := fmt.Sscanf(entry, "%d-%d", &p, &i)
		require.NoError(t, err)
		if prev, ok := last[p]; ok {
			assert.Greater(t, i, prev)
		}
		last[p] = i
	}
}

func TestLogAggregatorUpdatesCoalesce(t *testing.T) {
	t.Parallel()

	log := NewLogAggregator()
	updates, cancel := log.Subscribe()
	defer cancel()

	log.Append("one")
	log.Append("two")
	log.Append("three")

	select {
	case <-updates:
	default:
		t.Fatal("expected a pending update")
	}

	select {
	case <-updates:
		t.Fatal("updates should coalesce into one signal")
	default:
	}
}

func TestLogAggregatorSignalsEverySubscriber(t *testing.T) {
	t.Parallel()

	log := NewLogAggregator()
	first, cancelFirst := log.Subscribe()
	second, cancelSecond := log.Subscribe()
	defer cancelSecond()

	log.Append("one")

	for name, updates := range map[string]<-chan struct{}{"first": first, "second": second} {
		select {
		case <-updates:
		default:
			t.Fatalf("%s subscriber missed the update", name)
		}
	}

	cancelFirst()
	cancelFirst()
	_, open := <-first
	assert.False(t, open)

	log.Clear()
	select {
	case <-second:
	default:
		t.Fatal("remaining subscriber missed the clear")
	}
}
