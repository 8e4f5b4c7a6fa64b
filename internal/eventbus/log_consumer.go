package eventbus

import (
	"context"

	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/event"
)

// LogConsumer logs all domain events.
type LogConsumer struct {
	log *zap.Logger
}

func NewLogConsumer(log *zap.Logger) *LogConsumer { return &LogConsumer{log: log} }

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	fields := []zap.Field{
		zap.String("op", evt.EventType),
		zap.String("user", evt.User),
		zap.String("category", evt.Category),
		zap.String("weight", evt.Weight),
		zap.String("event_id", evt.ID),
	}
	if evt.JigID != 0 {
		fields = append(fields, zap.Int64("jig_id", evt.JigID))
	}
	c.log.Info(evt.Summary, fields...)
	return nil
}
