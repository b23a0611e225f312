package publisher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/bft-labs/metricship/internal/adapters/http"
	"github.com/bft-labs/metricship/internal/collector"
	"github.com/bft-labs/metricship/internal/dispatch"
	"github.com/bft-labs/metricship/internal/domain"
	"github.com/bft-labs/metricship/internal/encoding"
)

type recordingSender struct {
	mu     sync.Mutex
	sizes  []int
	tags   []domain.TagList
	failAt int
}

func (s *recordingSender) Send(_ context.Context, tags domain.TagList, chunk domain.Chunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizes = append(s.sizes, chunk.Size())
	s.tags = append(s.tags, tags)
	if s.failAt > 0 && chunk.Size() == s.failAt {
		return 0, errors.New("rejected")
	}
	return domain.CountNumeric(chunk.Samples), nil
}

func samples(n int) []domain.Sample {
	out := make([]domain.Sample, n)
	for i := range out {
		out[i] = domain.NumericSample("m", nil, time.Unix(0, 0), float64(i))
	}
	return out
}

func TestPublish_SplitsIntoBatches(t *testing.T) {
	s := &recordingSender{}
	p := New(Config{BatchSize: 4, Timeout: time.Second}, s, nil, nil, nil)

	res := p.Publish(context.Background(), samples(10))
	assert.Equal(t, 10, res.Delivered)
	assert.Equal(t, 10, res.Expected)
	assert.Equal(t, 3, res.Batches)
	assert.True(t, res.Complete())
	assert.False(t, res.Outcome.Failed)

	sort.Ints(s.sizes)
	assert.Equal(t, []int{2, 4, 4}, s.sizes)
}

func TestPublish_FailedBatchDoesNotStopOthers(t *testing.T) {
	s := &recordingSender{failAt: 2}
	p := New(Config{BatchSize: 4, Timeout: time.Second}, s, nil, nil, nil)

	res := p.Publish(context.Background(), samples(10))
	assert.Equal(t, 8, res.Delivered)
	assert.True(t, res.Outcome.Failed)
	assert.False(t, res.Complete())
	require.Len(t, res.Outcome.Errors, 1)
}

func TestPublish_NonNumericCountsAsUndelivered(t *testing.T) {
	s := &recordingSender{}
	p := New(Config{BatchSize: 100, Timeout: time.Second}, s, nil, nil, nil)

	in := append(samples(3), domain.Sample{Name: "text"})
	res := p.Publish(context.Background(), in)
	assert.Equal(t, 3, res.Delivered)
	assert.Equal(t, 4, res.Expected)
	assert.True(t, res.Outcome.SilentPartial)
	assert.False(t, res.Outcome.Failed)
}

func TestPublish_Empty(t *testing.T) {
	s := &recordingSender{}
	p := New(Config{}, s, nil, nil, nil)

	res := p.Publish(context.Background(), nil)
	assert.Zero(t, res.Delivered)
	assert.Zero(t, res.Batches)
	assert.Empty(t, s.sizes)
}

func TestPublish_SetTags(t *testing.T) {
	s := &recordingSender{}
	p := New(Config{Timeout: time.Second}, s, nil, domain.TagList{{Key: "env", Value: "dev"}}, nil)

	p.Publish(context.Background(), samples(1))
	p.SetTags(domain.TagList{{Key: "env", Value: "prod"}})
	p.Publish(context.Background(), samples(1))

	require.Len(t, s.tags, 2)
	assert.Equal(t, "dev", s.tags[0][0].Value)
	assert.Equal(t, "prod", s.tags[1][0].Value)
	assert.Equal(t, "prod", p.Tags()[0].Value)
}

func TestPublish_EndToEnd(t *testing.T) {
	var requests atomic.Int32
	var mu sync.Mutex
	var names []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		body, _ := io.ReadAll(r.Body)
		u, err := encoding.Decode(r.Header.Get("Content-Type"), body)
		if err != nil {
			t.Errorf("decode: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if u.Tags["app"] != "web_1" {
			t.Errorf("common tag app = %q, want web_1", u.Tags["app"])
		}
		mu.Lock()
		for _, m := range u.Metrics {
			names = append(names, m.Tags["name"])
		}
		mu.Unlock()
		if n == 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sender := httpadapter.NewSender(
		httpadapter.SenderConfig{Endpoint: srv.URL, Timeout: time.Second},
		encoding.MsgpackEncoder{},
		collector.New(http.DefaultClient, nil),
		nil,
	)
	p := New(Config{BatchSize: 2, Timeout: 2 * time.Second}, sender, dispatch.New(dispatch.WithMaxInFlight(1)),
		domain.TagList{{Key: "app", Value: "web 1"}}, nil)

	in := []domain.Sample{
		domain.NumericSample("a", nil, time.Now(), 1),
		domain.NumericSample("b", nil, time.Now(), 2),
		domain.NumericSample("c", nil, time.Now(), 3),
		{Name: "skipped"},
	}
	res := p.Publish(context.Background(), in)

	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, 4, res.Expected)
	assert.True(t, res.Outcome.Failed)
	assert.Less(t, res.Delivered, 4)
	require.Len(t, res.Outcome.Errors, 1)

	var se *httpadapter.StatusError
	require.True(t, errors.As(res.Outcome.Errors[0], &se))
	assert.Equal(t, http.StatusInternalServerError, se.Status)

	mu.Lock()
	defer mu.Unlock()
	sort.Strings(names)
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestPublish_CycleTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	s := senderFunc(func(ctx context.Context, _ domain.TagList, _ domain.Chunk) (int, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return 0, ctx.Err()
	})
	p := New(Config{Timeout: 50 * time.Millisecond}, s, nil, nil, nil)

	start := time.Now()
	res := p.Publish(context.Background(), samples(3))
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, res.Outcome.TimedOut)
	assert.Zero(t, res.Delivered)
}

type senderFunc func(ctx context.Context, tags domain.TagList, chunk domain.Chunk) (int, error)

func (f senderFunc) Send(ctx context.Context, tags domain.TagList, chunk domain.Chunk) (int, error) {
	return f(ctx, tags, chunk)
}

type firstValueSender struct {
	mu     sync.Mutex
	firsts []float64
}

func (s *firstValueSender) Send(_ context.Context, _ domain.TagList, chunk domain.Chunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.firsts = append(s.firsts, *chunk.Samples[0].Value)
	return chunk.Size(), nil
}

func TestPublish_EachBatchSendsItsOwnChunk(t *testing.T) {
	s := &firstValueSender{}
	p := New(Config{BatchSize: 3, Timeout: time.Second}, s, nil, nil, nil)

	res := p.Publish(context.Background(), samples(9))
	require.True(t, res.Complete())

	sort.Float64s(s.firsts)
	assert.Equal(t, []float64{0, 3, 6}, s.firsts)
}
