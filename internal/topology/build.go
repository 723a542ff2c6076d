// Package topology turns broker records into a flow graph and projects that
// graph into renderable views.
package topology

import (
	"context"
	"fmt"

	"github.com/MalithGihan/rabbitflow/internal/broker"
	"github.com/MalithGihan/rabbitflow/pkg/types"
)

// Source is what Build needs from the broker for each queue.
type Source interface {
	GetQueueStats(ctx context.Context, name string) (broker.QueueStats, error)
	ListBindingsOfQueue(ctx context.Context, name string) ([]broker.Binding, error)
}

// Broker is a Source that can also list the queues of the current vhost.
type Broker interface {
	Source
	ListQueues(ctx context.Context) ([]broker.Queue, error)
}

// BuildFromBroker lists the queues of the current vhost and builds the graph.
func BuildFromBroker(ctx context.Context, b Broker) (*types.Graph, error) {
	queues, err := b.ListQueues(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	return Build(ctx, queues, b)
}

// Build assembles the graph queue by queue, in the given order. Per-source
// publish statistics create or overwrite links; bindings only add links for
// pairs not seen yet. Queries run one at a time and the first failure aborts
// the build.
func Build(ctx context.Context, queues []broker.Queue, src Source) (*types.Graph, error) {
	g := types.NewGraph()

	for _, q := range queues {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.AddNode(q.Name, types.KindQueue)

		stats, err := src.GetQueueStats(ctx, q.Name)
		if err != nil {
			return nil, fmt.Errorf("queue %q stats: %w", q.Name, err)
		}
		for _, in := range stats.Incoming {
			ex := in.Exchange.Name
			// rates are sampled deltas and dip below zero after counter resets
			g.AddNode(ex, types.KindExchange)
			g.UpsertLink(types.Link{
				Source:       ex,
				Target:       q.Name,
				Rate:         max(0, in.Stats.PublishDetails.Rate),
				PublishCount: in.Stats.Publish,
			})
		}

		bindings, err := src.ListBindingsOfQueue(ctx, q.Name)
		if err != nil {
			return nil, fmt.Errorf("queue %q bindings: %w", q.Name, err)
		}
		for _, b := range bindings {
			// the default exchange only shows up through publish statistics
			if b.Source == "" {
				continue
			}
			g.AddNode(b.Source, types.KindExchange)
			g.AddLinkIfAbsent(types.Link{Source: b.Source, Target: q.Name})
		}
	}

	return g, nil
}
