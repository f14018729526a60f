package indicator

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloneexec/internal/logger"
	"cloneexec/internal/pkg/fault"
)

// Resolver projects the indicator row active at a tick.
type Resolver struct {
	store     Store
	loc       Location
	tolerance time.Duration
	backtest  bool

	mu    sync.Mutex
	cache map[string]Table // backtest only
}

type ResolverOptions struct {
	Location  Location
	Tolerance time.Duration
	// Backtest serves previously parsed files from memory instead of re-reading them.
	Backtest bool
}

func NewResolver(store Store, opts ResolverOptions) (*Resolver, error) {
	if store == nil {
		return nil, fault.Configuration("indicator store is required")
	}
	if opts.Location.DataSet == "" {
		return nil, fault.Configuration("indicator data set not defined")
	}
	if opts.Location.PeriodLabel == "" {
		return nil, fault.Configuration("indicator time period not defined")
	}
	if opts.Location.FileName == "" {
		opts.Location.FileName = "USDT_BTC.json"
	}
	if opts.Tolerance < 0 {
		opts.Tolerance = 0
	}
	return &Resolver{
		store:     store,
		loc:       opts.Location,
		tolerance: opts.Tolerance,
		backtest:  opts.Backtest,
		cache:     make(map[string]Table),
	}, nil
}

// Resolve returns the active record for tick. A nil record with a nil error
// means the data is stale and the tick has nothing to act on.
func (r *Resolver) Resolve(ctx context.Context, tick time.Time) (*Record, error) {
	table, err := r.load(ctx, tick)
	if err != nil {
		return nil, err
	}
	rec, err := table.Select(tick, r.tolerance)
	if err != nil {
		logger.Errorf("Resolver: %v", err)
		return nil, err
	}
	if rec == nil {
		if last, ok := table.Last(); ok {
			logger.Warnf("Resolver: last indicator ended %s, older than %s at tick %s",
				last.End.Format(time.RFC3339), r.tolerance, tick.UTC().Format(time.RFC3339))
		} else {
			logger.Warnf("Resolver: indicator file for %s is empty", tick.UTC().Format(time.RFC3339))
		}
	}
	return rec, nil
}

func (r *Resolver) load(ctx context.Context, tick time.Time) (Table, error) {
	path := r.loc.Path(tick)
	if r.backtest {
		r.mu.Lock()
		table, ok := r.cache[path]
		r.mu.Unlock()
		if ok {
			logger.Debugf("Resolver: serving %s from cache", path)
			return table, nil
		}
	}
	data, err := r.store.GetTextFile(ctx, path, r.loc.FileName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Table{}, fault.Transient("indicator file %s/%s not available yet: %v", path, r.loc.FileName, err)
		}
		return Table{}, fault.Transient("read indicator %s/%s: %v", path, r.loc.FileName, err)
	}
	table, err := ParseTable(data)
	if err != nil {
		return Table{}, err
	}
	if r.backtest {
		r.mu.Lock()
		r.cache[path] = table
		r.mu.Unlock()
	}
	return table, nil
}
