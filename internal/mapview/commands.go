package mapview

import (
	"context"

	"github.com/reservemap/reservemap/internal/detail"
	"github.com/reservemap/reservemap/internal/pointresolve"
	"github.com/reservemap/reservemap/internal/reserve"
	"github.com/reservemap/reservemap/internal/search"
)

// Command is asynchronous work requested by the controller. The runtime
// performs it and feeds the outcome back as an Event.
type Command interface {
	commandName() string
}

// WaitSearch asks the runtime to deliver SearchDebounced after a delay.
type WaitSearch struct{ Wait search.Wait }

// FetchSearch dispatches a search query.
type FetchSearch struct{ Request search.Request }

// FetchAtPoint dispatches an at-point lookup.
type FetchAtPoint struct{ Request pointresolve.Request }

// FetchDetail dispatches a detail fetch.
type FetchDetail struct{ Request detail.Request }

// FetchOperators loads the operator list.
type FetchOperators struct{}

// FetchConfig loads the backend configuration.
type FetchConfig struct{}

func (WaitSearch) commandName() string     { return "wait_search" }
func (FetchSearch) commandName() string    { return "fetch_search" }
func (FetchAtPoint) commandName() string   { return "fetch_at_point" }
func (FetchDetail) commandName() string    { return "fetch_detail" }
func (FetchOperators) commandName() string { return "fetch_operators" }
func (FetchConfig) commandName() string    { return "fetch_config" }

// CommandName returns the stable name of cmd.
func CommandName(cmd Command) string {
	if cmd == nil {
		return ""
	}
	return cmd.commandName()
}

// Backend is the reserves REST API.
type Backend interface {
	Operators(ctx context.Context) ([]reserve.Operator, error)
	Config(ctx context.Context) (reserve.BackendConfig, error)
	SearchReserves(ctx context.Context, query string, pageSize int) ([]reserve.Summary, error)
	ReservesAtPoint(ctx context.Context, lat, lon float64) ([]reserve.Summary, error)
	Reserve(ctx context.Context, id string) (*reserve.Detail, error)
}

// Execute performs a fetch command against b and returns the resulting event.
// It returns nil for commands that are not fetches, such as WaitSearch.
func Execute(ctx context.Context, b Backend, cmd Command) Event {
	switch c := cmd.(type) {
	case FetchSearch:
		results, err := b.SearchReserves(ctx, c.Request.Query, search.PageSize)
		return SearchCompleted{Response: search.Response{Generation: c.Request.Generation, Results: results, Err: err}}
	case FetchAtPoint:
		candidates, err := b.ReservesAtPoint(ctx, c.Request.Point.Lat(), c.Request.Point.Lon())
		return PointResolved{Response: pointresolve.Response{Request: c.Request, Candidates: candidates, Err: err}}
	case FetchDetail:
		d, err := b.Reserve(ctx, c.Request.ID)
		return DetailLoaded{Response: detail.Response{Request: c.Request, Detail: d, Err: err}}
	case FetchOperators:
		ops, err := b.Operators(ctx)
		return OperatorsLoaded{Operators: ops, Err: err}
	case FetchConfig:
		cfg, err := b.Config(ctx)
		return ConfigLoaded{Config: cfg, Err: err}
	}
	return nil
}
