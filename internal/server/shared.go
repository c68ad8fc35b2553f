package server

import (
	"context"

	"github.com/getkin/kin-openapi/openapi3"
	"golang.org/x/sync/singleflight"
)

// sharedAggregator collapses concurrent requests for the same document into
// one aggregation. The shared aggregation is detached from the request that
// started it; each waiting request still gives up when its own context ends.
type sharedAggregator struct {
	Aggregator
	flightGroup singleflight.Group
}

func newSharedAggregator(agg Aggregator) *sharedAggregator {
	return &sharedAggregator{Aggregator: agg}
}

func (s *sharedAggregator) Aggregate(ctx context.Context, name string) (*openapi3.T, error) {
	ch := s.flightGroup.DoChan(name, func() (any, error) {
		return s.Aggregator.Aggregate(context.WithoutCancel(ctx), name)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*openapi3.T), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
