package settlement

import (
	"context"

	"github.com/gestion/backend/internal/domain/shared"
	"github.com/gestion/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// eventCollector accumulates domain events raised during a unit of work so
// they can be published after the transaction commits, never before.
type eventCollector struct {
	events []shared.DomainEvent
}

// collect drains the pending events of an aggregate into the collector
func (c *eventCollector) collect(aggregate interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}) {
	c.events = append(c.events, aggregate.GetDomainEvents()...)
	aggregate.ClearDomainEvents()
}

// add appends a standalone event
func (c *eventCollector) add(events ...shared.DomainEvent) {
	c.events = append(c.events, events...)
}

// publish logs every collected event. Events are an audit trail here, not
// a messaging contract, so structured logging is the delivery mechanism.
func (c *eventCollector) publish(ctx context.Context) {
	log := logger.FromContext(ctx)
	for _, e := range c.events {
		log.Info("Domain event",
			zap.String("event_type", e.EventType()),
			zap.String("event_id", e.EventID().String()),
			zap.String("aggregate_type", e.AggregateType()),
			zap.String("aggregate_id", e.AggregateID().String()),
			zap.Time("occurred_at", e.OccurredAt()),
		)
	}
	c.events = nil
}
