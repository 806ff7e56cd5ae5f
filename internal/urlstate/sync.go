package urlstate

import (
	"net/url"
	"sync"
)

// History is the browser history entry the URL lives in.
type History interface {
	// Current returns the current URL.
	Current() string

	// Replace swaps the current entry's URL without adding a history entry.
	Replace(rawURL string)
}

// MemoryHistory is a History kept in memory.
type MemoryHistory struct {
	mu       sync.Mutex
	current  string
	replaced int
}

// NewMemoryHistory returns a history positioned at rawURL.
func NewMemoryHistory(rawURL string) *MemoryHistory {
	return &MemoryHistory{current: rawURL}
}

// Current implements History.
func (h *MemoryHistory) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Replace implements History.
func (h *MemoryHistory) Replace(rawURL string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = rawURL
	h.replaced++
}

// Replacements returns how many times Replace was called.
func (h *MemoryHistory) Replacements() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.replaced
}

// Sync reads the URL once at startup and writes it on state changes. Reading
// never writes, and writes never trigger a read.
type Sync struct {
	history History
	read    bool
}

// NewSync returns a Sync over h.
func NewSync(h History) *Sync {
	return &Sync{history: h}
}

// ReadInitial decodes the startup URL. Only the first call reads; later calls
// return ok=false.
func (s *Sync) ReadInitial() (Decoded, bool) {
	if s.read {
		return Decoded{}, false
	}
	s.read = true

	u, err := url.Parse(s.history.Current())
	if err != nil {
		return Decode(url.Values{}), true
	}
	return Decode(u.Query()), true
}

// Write merges st into the current URL and replaces the history entry when the
// result differs. It returns the URL now current.
func (s *Sync) Write(st State) string {
	cur := s.history.Current()
	u, err := url.Parse(cur)
	if err != nil {
		u = &url.URL{}
	}

	u.RawQuery = Encode(u.Query(), st).Encode()
	next := u.String()
	if next != cur {
		s.history.Replace(next)
	}
	return next
}

// Current returns the current URL.
func (s *Sync) Current() string {
	return s.history.Current()
}
