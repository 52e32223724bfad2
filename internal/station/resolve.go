package station

import (
	"context"
	"runtime"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tripgeo/internal/neighbourhood"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithConcurrency bounds the number of stations resolved in parallel.
// Values below 1 resolve sequentially.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		r.concurrency = n
	}
}

// WithAmbiguityAudit makes the resolver scan the whole catalog for every
// station and record stations that fall inside more than one polygon. The
// first match in catalog order still wins.
func WithAmbiguityAudit() Option {
	return func(r *Resolver) {
		r.audit = true
	}
}

// Resolver assigns station locations to catalog neighbourhoods.
type Resolver struct {
	concurrency int
	audit       bool
}

// NewResolver creates a Resolver. By default it uses one worker per CPU.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{concurrency: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	return r
}

type outcome struct {
	entry      neighbourhood.Entry
	found      bool
	candidates []string
}

// Resolve tests every location against the catalog in catalog order and
// keeps the first matching neighbourhood. Locations matching nothing are
// reported in Resolution.Unresolved.
func (r *Resolver) Resolve(ctx context.Context, locations []Location, cat *neighbourhood.Catalog) (*Resolution, error) {
	if cat == nil {
		return nil, eris.New("station: resolve: nil catalog")
	}

	outcomes := make([]outcome, len(locations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, loc := range locations {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.resolveOne(loc, cat)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "station: resolve")
	}

	res := &Resolution{byName: make(map[string]Assignment, len(locations))}
	for i, loc := range locations {
		o := outcomes[i]
		if !o.found {
			res.Unresolved = append(res.Unresolved, loc.Station)
			continue
		}
		if _, dup := res.byName[loc.Station]; dup {
			continue
		}
		res.byName[loc.Station] = Assignment{
			Station:       loc.Station,
			Borough:       o.entry.Borough,
			Neighbourhood: o.entry.Neighbourhood,
			Point:         loc.Point,
		}
		if len(o.candidates) > 1 {
			if res.Ambiguous == nil {
				res.Ambiguous = make(map[string][]string)
			}
			res.Ambiguous[loc.Station] = o.candidates
		}
	}
	sort.Strings(res.Unresolved)

	zap.L().Debug("station: resolved",
		zap.Int("stations", len(locations)),
		zap.Int("resolved", res.Len()),
		zap.Int("unresolved", len(res.Unresolved)),
		zap.Int("ambiguous", len(res.Ambiguous)),
	)
	return res, nil
}

func (r *Resolver) resolveOne(loc Location, cat *neighbourhood.Catalog) outcome {
	if !r.audit {
		e, ok := cat.First(loc.Point)
		return outcome{entry: e, found: ok}
	}

	matches := cat.Lookup(loc.Point)
	if len(matches) == 0 {
		return outcome{}
	}
	candidates := make([]string, len(matches))
	for i, m := range matches {
		candidates[i] = m.Neighbourhood
	}
	return outcome{entry: matches[0], found: true, candidates: candidates}
}
