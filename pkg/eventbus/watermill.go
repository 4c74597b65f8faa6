package eventbus

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/trigonhq/trigon/pkg/events"
	"github.com/trigonhq/trigon/pkg/otelhelper"
)

// WatermillEventBus publishes and subscribes activation events over any
// watermill pub/sub pair (GoChannel in-process, Kafka in production).
type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
	tracer        trace.Tracer
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

// WithTracer enables a span per consumed message.
func (eb *WatermillEventBus) WithTracer(tracer trace.Tracer) *WatermillEventBus {
	eb.tracer = tracer

	return eb
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eb.consume(ctx, msg)
		}
	}()

	return nil
}

func (eb *WatermillEventBus) consume(ctx context.Context, msg *message.Message) {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	msgCtx := ctx

	var span trace.Span
	if eb.tracer != nil {
		msgCtx, span = otelhelper.StartSpan(ctx, eb.tracer, "eventbus consume",
			attribute.String(otelhelper.EventTypeKey, string(eventType)))
		defer span.End()
	}

	handler, exists := eb.subscriptions[eventType]
	if !exists {
		msg.Ack()

		return
	}

	var event any

	switch eventType {
	case events.ActivationStatusChangedEvent:
		event = &events.ActivationStatusChanged{}
	case events.ActivationActionStatusChangedEvent:
		event = &events.ActivationActionStatusChanged{}
	case events.ScheduleFiredEvent:
		event = &events.ScheduleFired{}
	case events.ScheduleCancelledEvent:
		event = &events.ScheduleCancelled{}
	case events.AutomationActivatedEvent:
		event = &events.AutomationActivated{}
	case events.AutomationDeactivatedEvent:
		event = &events.AutomationDeactivated{}
	default:
		if span != nil {
			otelhelper.SetError(span, errors.New("unknown event type"))
		}

		msg.Nack()

		return
	}

	if err := json.Unmarshal(msg.Payload, event); err != nil {
		if span != nil {
			otelhelper.SetError(span, err)
		}

		msg.Nack()

		return
	}

	if err := handler(msgCtx, event); err != nil {
		if span != nil {
			otelhelper.SetError(span, err)
		}

		msg.Nack()

		return
	}

	msg.Ack()
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
