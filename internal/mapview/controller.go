// Package mapview is the map view-state controller. It owns the camera, the
// filters, the tile layer revision, the highlight and the sidebar and picker
// visibility, and is the only place that state changes.
//
// The controller performs no I/O. Handle applies one event and returns the
// commands the runtime must perform; their outcomes come back as events.
// Search, point resolution and detail loading each carry a generation, and a
// result whose generation has been superseded is discarded on arrival.
package mapview

import (
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/reservemap/reservemap/internal/detail"
	"github.com/reservemap/reservemap/internal/filter"
	"github.com/reservemap/reservemap/internal/pointresolve"
	"github.com/reservemap/reservemap/internal/reserve"
	"github.com/reservemap/reservemap/internal/search"
	"github.com/reservemap/reservemap/internal/urlstate"
	"github.com/reservemap/reservemap/internal/viewport"
)

// Pipeline names reported to Config.OnStale.
const (
	PipelineSearch = "search"
	PipelinePoint  = "point"
	PipelineDetail = "detail"
)

// Config holds configuration for a Controller.
type Config struct {
	// History holds the page URL. Required.
	History urlstate.History

	// Logger for controller decisions.
	Logger zerolog.Logger

	// Viewport is the initial map size (default: viewport.DefaultSize).
	Viewport viewport.Size

	// SearchDebounce is the search input silence window (default: 300ms).
	SearchDebounce time.Duration

	// FitPadding and FitMaxZoom frame a selected search result.
	FitPadding float64
	FitMaxZoom int

	// OnStale is called whenever a superseded result is discarded.
	OnStale func(pipeline string)
}

// Controller is the map view-state controller. It is not safe for concurrent
// use; a single goroutine must drive it.
type Controller struct {
	logger  zerolog.Logger
	sync    *urlstate.Sync
	onStale func(string)

	started bool
	size    viewport.Size
	camera  viewport.Camera
	filters filter.State

	operators    []reserve.Operator
	maxTileZoom  int
	tileRevision uint64

	search   *search.Pipeline
	resolver pointresolve.Resolver
	picker   *pointresolve.Outcome
	detail   *detail.Loader

	// startupDetail is the generation of the detail load requested by the URL.
	startupDetail uint64

	url string
}

// New creates a controller. Call Start before handling events.
func New(cfg Config) *Controller {
	onStale := cfg.OnStale
	if onStale == nil {
		onStale = func(string) {}
	}
	return &Controller{
		logger:      cfg.Logger,
		sync:        urlstate.NewSync(cfg.History),
		onStale:     onStale,
		size:        cfg.Viewport.OrDefault(),
		camera:      viewport.DefaultCamera,
		operators:   []reserve.Operator{},
		maxTileZoom: reserve.DefaultVectorTileMaxZoom,
		search:      search.New(cfg.SearchDebounce),
		detail:      detail.NewLoader(viewport.FitOptions{Padding: cfg.FitPadding, MaxZoom: cfg.FitMaxZoom}),
		url:         cfg.History.Current(),
	}
}

// Start reads the URL once and returns the initial loads. Reading the URL
// never writes it back. A reserve named in the URL is loaded, and the camera is
// fitted to it only when the URL carried no camera of its own.
func (c *Controller) Start() []Command {
	if c.started {
		return nil
	}
	c.started = true

	cmds := []Command{FetchOperators{}, FetchConfig{}}

	d, ok := c.sync.ReadInitial()
	if !ok {
		return cmds
	}
	c.camera = d.Camera.Clamp(viewport.MaxZoom)
	c.filters = d.Filters
	if d.Reserve != "" {
		req := c.detail.Load(d.Reserve, !d.ExplicitCamera)
		c.startupDetail = req.Generation
		cmds = append(cmds, FetchDetail{Request: req})
	}

	c.logger.Debug().
		Float64("lat", c.camera.Lat).
		Float64("lon", c.camera.Lon).
		Int("zoom", c.camera.Zoom).
		Bool("explicit_camera", d.ExplicitCamera).
		Str("reserve", d.Reserve).
		Msg("view state read from url")

	return cmds
}

// Handle applies ev and returns the commands to perform.
func (c *Controller) Handle(ev Event) []Command {
	switch e := ev.(type) {
	case CameraSettled:
		return c.cameraSettled(e)
	case OperatorSelected:
		return c.setFilters(c.filters.WithOperator(e.ID))
	case ProtectionLevelSelected:
		next := c.filters
		next.ProtectionLevel = e.Level
		return c.setFilters(next)
	case SourceSelected:
		next := c.filters
		next.Source = e.Source
		return c.setFilters(next)
	case FiltersCleared:
		return c.setFilters(filter.State{SearchText: c.filters.SearchText})
	case SearchTyped:
		c.filters.SearchText = e.Text
		return []Command{WaitSearch{Wait: c.search.Input(e.Text)}}
	case SearchDebounced:
		if req, ok := c.search.Elapsed(e.Token); ok {
			return []Command{FetchSearch{Request: req}}
		}
		return nil
	case SearchCompleted:
		c.searchCompleted(e)
		return nil
	case SearchResultChosen:
		return c.searchResultChosen(e)
	case MapClicked:
		c.picker = nil
		return []Command{FetchAtPoint{Request: c.resolver.Begin(e.Click, c.camera, c.size)}}
	case PointResolved:
		return c.pointResolved(e)
	case PickerChosen:
		return c.pickerChosen(e)
	case PickerDismissed:
		c.picker = nil
		return nil
	case SidebarClosed:
		c.detail.Close()
		c.writeURL()
		return nil
	case ViewportResized:
		c.size = e.Size.OrDefault()
		return nil
	case DetailLoaded:
		c.detailLoaded(e)
		return nil
	case OperatorsLoaded:
		c.operatorsLoaded(e)
		return nil
	case ConfigLoaded:
		c.configLoaded(e)
		return nil
	}
	return nil
}

func (c *Controller) cameraSettled(e CameraSettled) []Command {
	c.camera = e.Camera.Clamp(viewport.MaxZoom)
	c.writeURL()
	return nil
}

// setFilters is the single path for filter mutations. A change redraws the
// tile layer and writes the URL; setting the same filters again does neither.
// Out-of-domain values are ignored.
func (c *Controller) setFilters(next filter.State) []Command {
	if err := next.Validate(); err != nil {
		c.logger.Debug().Err(err).Msg("ignoring invalid filter")
		return nil
	}
	if next.SameDimensions(c.filters) {
		return nil
	}
	c.filters = next
	c.tileRevision++
	c.writeURL()
	return nil
}

func (c *Controller) searchCompleted(e SearchCompleted) {
	if !c.search.Apply(e.Response) {
		c.stale(PipelineSearch, e.Response.Generation)
		return
	}
	if e.Response.Err != nil {
		c.logger.Warn().Err(e.Response.Err).Msg("search failed, showing no results")
	}
}

func (c *Controller) searchResultChosen(e SearchResultChosen) []Command {
	if e.ID == "" {
		return nil
	}
	c.search.Reset()
	c.filters.SearchText = ""
	c.picker = nil
	c.resolver.Cancel()
	return []Command{FetchDetail{Request: c.detail.Load(e.ID, true)}}
}

func (c *Controller) pointResolved(e PointResolved) []Command {
	out, ok := c.resolver.Resolve(e.Response)
	if !ok {
		c.stale(PipelinePoint, e.Response.Request.Generation)
		return nil
	}
	if e.Response.Err != nil {
		c.logger.Warn().Err(e.Response.Err).Str("fallback", e.Response.Request.Fallback).Msg("at-point lookup failed, using clicked feature")
	}

	switch out.Kind {
	case pointresolve.SingleMatch:
		c.picker = nil
		return []Command{FetchDetail{Request: c.detail.Load(out.ReserveID, false)}}
	case pointresolve.MultipleMatches:
		c.picker = &out
	}
	return nil
}

func (c *Controller) pickerChosen(e PickerChosen) []Command {
	if c.picker == nil {
		return nil
	}
	for _, item := range c.picker.Candidates {
		if item.ID == e.ID {
			c.picker = nil
			return []Command{FetchDetail{Request: c.detail.Load(e.ID, false)}}
		}
	}
	return nil
}

func (c *Controller) detailLoaded(e DetailLoaded) {
	res, ok := c.detail.Apply(e.Response, c.camera, c.size)
	if !ok {
		c.stale(PipelineDetail, e.Response.Request.Generation)
		return
	}
	if res.Camera != nil {
		c.camera = *res.Camera
	}
	if c.detail.Current() == nil {
		c.logger.Warn().Err(e.Response.Err).Str("reserve_id", e.Response.Request.ID).Msg("failed to load reserve detail")
	}
	if e.Response.Request.Generation == c.startupDetail {
		return
	}
	// A failure drops the previously selected reserve from the URL.
	c.writeURL()
}

func (c *Controller) operatorsLoaded(e OperatorsLoaded) {
	if e.Err != nil {
		c.logger.Warn().Err(e.Err).Msg("failed to load operators")
		return
	}
	if e.Operators == nil {
		c.operators = []reserve.Operator{}
		return
	}
	c.operators = e.Operators
}

func (c *Controller) configLoaded(e ConfigLoaded) {
	if e.Err != nil {
		c.logger.Warn().Err(e.Err).Int("max_tile_zoom", c.maxTileZoom).Msg("failed to load backend config, keeping default tile zoom")
		return
	}
	if z := e.Config.VectorTileMaxZoom; z > 0 && z <= viewport.MaxZoom {
		c.maxTileZoom = z
	}
}

func (c *Controller) stale(pipeline string, generation uint64) {
	c.logger.Debug().Str("pipeline", pipeline).Uint64("generation", generation).Msg("discarding superseded result")
	c.onStale(pipeline)
}

// writeURL is the only place the URL is written.
func (c *Controller) writeURL() {
	c.url = c.sync.Write(urlstate.State{
		Camera:  c.camera,
		Filters: c.filters,
		Reserve: c.selectedReserve(),
	})
}

// selectedReserve is the id shown in the detail panel, empty while it is closed
// or shows an error.
func (c *Controller) selectedReserve() string {
	if !c.detail.Open() {
		return ""
	}
	d := c.detail.Current()
	if d == nil {
		return ""
	}
	if d.ID != "" {
		return d.ID
	}
	return c.detail.PendingID()
}

// Filters returns the current filter state.
func (c *Controller) Filters() filter.State { return c.filters }

// MaxTileZoom returns the highest zoom the tile source serves natively.
func (c *Controller) MaxTileZoom() int { return c.maxTileZoom }

// State returns a snapshot of the view state.
func (c *Controller) State() ViewState {
	s := ViewState{
		Camera:       c.camera,
		Viewport:     c.size,
		Filters:      c.filters,
		Operators:    c.operators,
		Legend:       legend(),
		MaxTileZoom:  c.maxTileZoom,
		TileRevision: c.tileRevision,
		Search: SearchView{
			Query:   c.search.Text(),
			Results: c.search.Results(),
			Loading: c.search.Loading(),
		},
		Picker:       PickerView{Items: []reserve.Summary{}},
		PointLoading: c.resolver.Loading(),
		Sidebar: SidebarView{
			Open:    c.detail.Open(),
			Loading: c.detail.Loading(),
			Error:   c.detail.Error(),
		},
		URL: c.url,
	}
	if c.filters.OperatorID != nil {
		id := *c.filters.OperatorID
		s.Filters.OperatorID = &id
	}

	if c.picker != nil {
		anchor := c.picker.Anchor
		s.Picker = PickerView{Open: true, Items: c.picker.Candidates, Anchor: &anchor}
	}

	if d := c.detail.Current(); d != nil && c.detail.Open() {
		s.Sidebar.ReserveID = c.selectedReserve()
		s.Sidebar.Detail = newDetailView(d)
		if d.Geometry != nil {
			s.Highlight = geojson.NewGeometry(d.Geometry)
		}
	}
	if c.detail.Loading() {
		s.Sidebar.ReserveID = c.detail.PendingID()
	}
	return s
}
