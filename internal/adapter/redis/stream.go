package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"textrpg/internal/domain"
)

// Stream entry field names.
const (
	fieldID          = "id"
	fieldKind        = "kind"
	fieldCharacterID = "character_id"
	fieldPayload     = "payload"
)

// StreamPublisher appends lifecycle events to a Redis stream.
type StreamPublisher struct {
	client *goredis.Client
	stream string
	maxLen int64
}

var _ domain.EventPublisher = (*StreamPublisher)(nil)

// NewStreamPublisher creates a publisher for stream. A positive maxLen trims
// the stream approximately to that many entries.
func NewStreamPublisher(client *goredis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Publish(ctx context.Context, e domain.LifecycleEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	args := &goredis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			fieldID:          e.ID,
			fieldKind:        string(e.Kind),
			fieldCharacterID: e.CharacterID,
			fieldPayload:     string(payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// decodeEvent rebuilds an event from a stream entry.
func decodeEvent(msg goredis.XMessage) (domain.LifecycleEvent, error) {
	raw, ok := msg.Values[fieldPayload].(string)
	if !ok {
		return domain.LifecycleEvent{}, fmt.Errorf("entry %s has no payload", msg.ID)
	}
	var e domain.LifecycleEvent
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return domain.LifecycleEvent{}, fmt.Errorf("entry %s: %w", msg.ID, err)
	}
	return e, nil
}

// NotificationStream appends notifications to a Redis stream. It implements
// domain.NotificationSink.
type NotificationStream struct {
	client *goredis.Client
	stream string
}

var _ domain.NotificationSink = (*NotificationStream)(nil)

func NewNotificationStream(client *goredis.Client, stream string) *NotificationStream {
	return &NotificationStream{client: client, stream: stream}
}

func (s *NotificationStream) Notify(ctx context.Context, n domain.Notification) error {
	return s.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"event_id":     n.EventID,
			"character_id": n.CharacterID,
			"kind":         string(n.Kind),
			"message":      n.Message,
			"timestamp":    n.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
}
