// Package search turns raw keystrokes into debounced, deduplicated reserve
// searches where only the most recently dispatched query may surface results.
//
// The pipeline does no I/O and owns no timers. Input returns a Wait that the
// caller schedules; when the wait elapses the caller reports it back through
// Elapsed, which may return a Request to dispatch. Responses are applied with
// Apply and are discarded when a newer request has been issued since.
package search

import (
	"strings"
	"time"

	"github.com/reservemap/reservemap/internal/reserve"
)

const (
	// DefaultDebounce is the input silence required before a query is dispatched.
	DefaultDebounce = 300 * time.Millisecond

	// MinQueryLength is the trimmed length below which no request is made.
	MinQueryLength = 2

	// PageSize is the number of results requested per query.
	PageSize = 20
)

// Wait asks the caller to report back with Elapsed(Token) after Delay.
type Wait struct {
	Token uint64
	Delay time.Duration
}

// Request is a query to dispatch to the backend.
type Request struct {
	Generation uint64
	Query      string
}

// Response is the outcome of a dispatched Request.
type Response struct {
	Generation uint64
	Results    []reserve.Summary
	Err        error
}

// Pipeline holds the search state for one viewer.
type Pipeline struct {
	debounce time.Duration

	text    string
	token   uint64
	pending bool

	generation uint64
	inflight   bool
	dispatched string
	hasSent    bool

	results []reserve.Summary
	loading bool
}

// New returns a pipeline with the given debounce; zero means DefaultDebounce.
func New(debounce time.Duration) *Pipeline {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Pipeline{debounce: debounce, results: []reserve.Summary{}}
}

// Input records a keystroke and starts a new debounce window. Any earlier
// window is superseded. The loading flag turns on immediately when the text
// would pass the length gate.
func (p *Pipeline) Input(text string) Wait {
	p.text = text
	p.token++
	p.pending = true
	if len(normalize(text)) >= MinQueryLength {
		p.loading = true
	} else {
		p.loading = p.inflight
	}
	return Wait{Token: p.token, Delay: p.debounce}
}

// Elapsed is called when the debounce window identified by token has passed.
// It returns the request to dispatch, if any.
func (p *Pipeline) Elapsed(token uint64) (Request, bool) {
	if !p.pending || token != p.token {
		return Request{}, false
	}
	p.pending = false

	q := normalize(p.text)
	if p.hasSent && q == p.dispatched {
		p.loading = p.inflight
		return Request{}, false
	}
	p.dispatched = q
	p.hasSent = true
	p.generation++

	if len(q) < MinQueryLength {
		p.inflight = false
		p.loading = false
		p.results = []reserve.Summary{}
		return Request{}, false
	}

	p.inflight = true
	p.loading = true
	return Request{Generation: p.generation, Query: q}, true
}

// Apply stores the results of resp when it answers the latest dispatched
// request. It reports whether the response was applied. Failures surface as an
// empty batch.
func (p *Pipeline) Apply(resp Response) bool {
	if resp.Generation != p.generation || !p.inflight {
		return false
	}
	p.inflight = false
	p.loading = p.pending && len(normalize(p.text)) >= MinQueryLength
	if resp.Err != nil || resp.Results == nil {
		p.results = []reserve.Summary{}
		return true
	}
	p.results = resp.Results
	return true
}

// Reset clears the query and results and invalidates anything in flight.
func (p *Pipeline) Reset() {
	p.text = ""
	p.token++
	p.pending = false
	p.generation++
	p.inflight = false
	p.dispatched = ""
	p.hasSent = false
	p.results = []reserve.Summary{}
	p.loading = false
}

// Text returns the raw input text.
func (p *Pipeline) Text() string { return p.text }

// Results returns the latest surfaced batch.
func (p *Pipeline) Results() []reserve.Summary { return p.results }

// Loading reports whether a search is pending or in flight.
func (p *Pipeline) Loading() bool { return p.loading }

func normalize(s string) string {
	return strings.TrimSpace(s)
}
