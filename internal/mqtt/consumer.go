package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/events"
	"github.com/skybound/skybound/internal/observability/metrics"
)

// ChangeConsumer forwards catalog changes from the event bus to the
// broker. Each change goes to <topic>/<entity> as a JSON document.
type ChangeConsumer struct {
	client  Client
	topic   string
	timeout time.Duration
	metrics *metrics.ChangeMetrics
}

// NewChangeConsumer creates a consumer publishing through client.
// changeMetrics may be nil.
func NewChangeConsumer(client Client, config Config, changeMetrics *metrics.ChangeMetrics) *ChangeConsumer {
	timeout := config.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().PublishTimeout
	}
	return &ChangeConsumer{client: client, topic: config.Topic, timeout: timeout, metrics: changeMetrics}
}

// Name implements events.EventConsumer.
func (c *ChangeConsumer) Name() string { return "mqtt" }

// TopicFor returns the topic a change of entity is published to.
func (c *ChangeConsumer) TopicFor(entity string) string {
	if c.topic == "" {
		return entity
	}
	return c.topic + "/" + entity
}

// ProcessEvent implements events.EventConsumer.
func (c *ChangeConsumer) ProcessEvent(change events.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		c.metrics.RecordPublish(change.Entity, string(change.Action), err, 0)
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryMQTTPublish).
			Context("entity", change.Entity).
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	err = c.client.Publish(ctx, c.TopicFor(change.Entity), payload)
	c.metrics.RecordPublish(change.Entity, string(change.Action), err, time.Since(start).Seconds())
	return err
}
