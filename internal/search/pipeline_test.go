package search_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reservemap/reservemap/internal/reserve"
	"github.com/reservemap/reservemap/internal/search"
)

func summaries(ids ...string) []reserve.Summary {
	out := make([]reserve.Summary, len(ids))
	for i, id := range ids {
		out[i] = reserve.Summary{ID: id, Name: id, AreaType: "nature_reserve"}
	}
	return out
}

func TestPipeline_DebounceCollapsesKeystrokes(t *testing.T) {
	p := search.New(0)

	w1 := p.Input("a")
	assert.Equal(t, search.DefaultDebounce, w1.Delay)
	assert.False(t, p.Loading(), "single character never loads")

	w2 := p.Input("am")
	assert.True(t, p.Loading())

	_, ok := p.Elapsed(w1.Token)
	assert.False(t, ok, "superseded window dispatches nothing")

	req, ok := p.Elapsed(w2.Token)
	require.True(t, ok)
	assert.Equal(t, "am", req.Query)

	_, ok = p.Elapsed(w2.Token)
	assert.False(t, ok, "a window fires at most once")
}

func TestPipeline_ShortQueryShortCircuits(t *testing.T) {
	p := search.New(0)

	w := p.Input(" a ")
	_, ok := p.Elapsed(w.Token)

	assert.False(t, ok)
	assert.Empty(t, p.Results())
	assert.False(t, p.Loading())
}

func TestPipeline_ShortQueryClearsPreviousResults(t *testing.T) {
	p := search.New(0)

	req, ok := p.Elapsed(p.Input("heide").Token)
	require.True(t, ok)
	require.True(t, p.Apply(search.Response{Generation: req.Generation, Results: summaries("way_1")}))
	require.Len(t, p.Results(), 1)

	_, ok = p.Elapsed(p.Input("h").Token)
	assert.False(t, ok)
	assert.Empty(t, p.Results())
}

func TestPipeline_DeduplicatesAgainstLastDispatch(t *testing.T) {
	p := search.New(0)

	req, ok := p.Elapsed(p.Input("veluwe").Token)
	require.True(t, ok)
	p.Apply(search.Response{Generation: req.Generation, Results: summaries("way_1")})

	p.Input("veluw")
	_, ok = p.Elapsed(p.Input("veluwe ").Token)
	assert.False(t, ok, "same trimmed query as the last dispatch")
	assert.False(t, p.Loading())
	assert.Len(t, p.Results(), 1)
}

func TestPipeline_SwitchLatest(t *testing.T) {
	p := search.New(0)

	reqA, ok := p.Elapsed(p.Input("alpha").Token)
	require.True(t, ok)
	reqB, ok := p.Elapsed(p.Input("beta").Token)
	require.True(t, ok)

	assert.True(t, p.Apply(search.Response{Generation: reqB.Generation, Results: summaries("way_b")}))
	assert.False(t, p.Apply(search.Response{Generation: reqA.Generation, Results: summaries("way_a")}))

	assert.Equal(t, summaries("way_b"), p.Results())
	assert.False(t, p.Loading())
}

func TestPipeline_StaleBeforeLatestArrives(t *testing.T) {
	p := search.New(0)

	reqA, _ := p.Elapsed(p.Input("alpha").Token)
	reqB, _ := p.Elapsed(p.Input("beta").Token)

	assert.False(t, p.Apply(search.Response{Generation: reqA.Generation, Results: summaries("way_a")}))
	assert.Empty(t, p.Results())
	assert.True(t, p.Loading(), "latest request still in flight")

	p.Apply(search.Response{Generation: reqB.Generation, Results: summaries("way_b")})
	assert.Equal(t, summaries("way_b"), p.Results())
}

func TestPipeline_FailureSurfacesEmptyBatch(t *testing.T) {
	p := search.New(0)

	req, _ := p.Elapsed(p.Input("alpha").Token)
	p.Apply(search.Response{Generation: req.Generation, Err: errors.New("boom")})

	assert.Empty(t, p.Results())
	assert.NotNil(t, p.Results())
	assert.False(t, p.Loading())
}

func TestPipeline_ResetInvalidatesInflight(t *testing.T) {
	p := search.New(0)

	req, _ := p.Elapsed(p.Input("alpha").Token)
	p.Reset()

	assert.False(t, p.Apply(search.Response{Generation: req.Generation, Results: summaries("way_a")}))
	assert.Empty(t, p.Results())
	assert.Empty(t, p.Text())
}
