package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/internal/resilience"
)

type fakeSource struct {
	name    string
	payload map[string]any
	err     error
	block   bool
	ignore  bool // block without honoring ctx
	panics  bool
	calls   atomic.Int32
	release chan struct{}
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Lookup(ctx context.Context, _ *model.ExtractionBundle) (map[string]any, error) {
	f.calls.Add(1)
	switch {
	case f.panics:
		panic("nil map write")
	case f.ignore:
		<-f.release
		return map[string]any{"late": true}, nil
	case f.block:
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.payload, f.err
}

func ok(name string) *fakeSource {
	return &fakeSource{name: name, payload: map[string]any{"source": name}}
}

func TestRun_ThirteenSourcesThreeTimeOut(t *testing.T) {
	t.Parallel()

	var sources []Source
	for i := 0; i < 10; i++ {
		sources = append(sources, ok(fmt.Sprintf("src_%02d", i)))
	}
	for i := 10; i < 13; i++ {
		sources = append(sources, &fakeSource{name: fmt.Sprintf("src_%02d", i), block: true})
	}

	o, err := New(sources, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	records := o.Run(context.Background(), model.NewDefaultBundle())
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, records, 13)
	var succeeded, timedOut int
	for name, r := range records {
		assert.Equal(t, name, r.Source)
		if r.OK() {
			succeeded++
			assert.Equal(t, name, r.Payload["source"])
			continue
		}
		assert.True(t, r.Timeout, name)
		assert.Contains(t, r.Error, "timeout")
		assert.Nil(t, r.Payload)
		timedOut++
	}
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 3, timedOut)
	assert.Len(t, model.SucceededSources(records), 10)
}

func TestRun_SourceIgnoringContextStillTimesOut(t *testing.T) {
	t.Parallel()

	stuck := &fakeSource{name: "stuck", ignore: true, release: make(chan struct{})}
	t.Cleanup(func() { close(stuck.release) })

	o, err := New([]Source{stuck, ok("fine")}, WithTimeout(30*time.Millisecond))
	require.NoError(t, err)

	records := o.Run(context.Background(), model.NewDefaultBundle())
	require.Len(t, records, 2)
	assert.True(t, records["stuck"].Timeout)
	assert.True(t, records["fine"].OK())
}

func TestRun_FailuresAreIsolated(t *testing.T) {
	t.Parallel()

	o, err := New([]Source{
		ok("good"),
		&fakeSource{name: "broken", err: errors.New("upstream 500")},
		&fakeSource{name: "panicky", panics: true},
		&fakeSource{name: "empty"},
	})
	require.NoError(t, err)

	records := o.Run(context.Background(), model.NewDefaultBundle())
	require.Len(t, records, 4)

	assert.True(t, records["good"].OK())

	assert.Equal(t, "source broken: upstream 500", records["broken"].Error)
	assert.False(t, records["broken"].Timeout)

	assert.Contains(t, records["panicky"].Error, "panic: nil map write")
	assert.Contains(t, records["empty"].Error, "no payload")

	for _, r := range records {
		assert.False(t, r.FetchedAt.IsZero())
	}
}

func TestRun_ParentCancelIsNotTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, err := New([]Source{&fakeSource{name: "slow", block: true}}, WithTimeout(time.Minute))
	require.NoError(t, err)

	records := o.Run(ctx, model.NewDefaultBundle())
	require.Len(t, records, 1)
	assert.NotEmpty(t, records["slow"].Error)
	assert.False(t, records["slow"].Timeout)
}

func TestRun_CircuitOpensAcrossRuns(t *testing.T) {
	t.Parallel()

	breakers := resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})
	flaky := &fakeSource{name: "flaky", err: errors.New("503")}

	for i := 0; i < 3; i++ {
		o, err := New([]Source{flaky, ok("steady")}, WithBreakers(breakers))
		require.NoError(t, err)
		records := o.Run(context.Background(), model.NewDefaultBundle())
		require.Len(t, records, 2)
		assert.True(t, records["steady"].OK())
		if i == 2 {
			assert.Contains(t, records["flaky"].Error, "circuit breaker is open")
		}
	}

	assert.Equal(t, int32(2), flaky.calls.Load())
	assert.Equal(t, resilience.CircuitOpen, breakers.States()["flaky"])
}

func TestRun_MissingInputDoesNotTripBreaker(t *testing.T) {
	t.Parallel()

	breakers := resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	o, err := New([]Source{NewWebsiteSource(&fakeCrawler{})}, WithBreakers(breakers))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		records := o.Run(context.Background(), model.NewDefaultBundle())
		assert.Contains(t, records["website"].Error, "no website")
	}
	assert.Equal(t, resilience.CircuitClosed, breakers.States()["website"])
}

func TestNew_DuplicateSource(t *testing.T) {
	t.Parallel()

	_, err := New([]Source{ok("news"), ok("news")})
	assert.Error(t, err)
}

func TestOrchestrator_Names(t *testing.T) {
	t.Parallel()

	o, err := New([]Source{ok("b"), ok("a")})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, o.Names())
}
