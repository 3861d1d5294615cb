package events

import (
	"context"
	"strconv"

	"github.com/ledgerkraft/bookkeeping/internal/model"
)

const (
	MetaEventType   = "type"
	MetaAccountID   = "account_id"
	EventTypeImport = "transactions.imported"
)

// Publisher delivers import events after the import committed.
type Publisher interface {
	Publish(ctx context.Context, event *model.ImportEvent) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *model.ImportEvent) error { return nil }

type jsonPublisher interface {
	PublishJSON(ctx context.Context, v interface{}, metadata map[string]string) (string, error)
}

// StreamPublisher appends events to the redis stream read by the processor.
type StreamPublisher struct {
	queue jsonPublisher
}

func NewStreamPublisher(q jsonPublisher) *StreamPublisher {
	return &StreamPublisher{queue: q}
}

func (p *StreamPublisher) Publish(ctx context.Context, event *model.ImportEvent) error {
	_, err := p.queue.PublishJSON(ctx, event, map[string]string{
		MetaEventType: EventTypeImport,
		MetaAccountID: strconv.FormatInt(event.AccountID, 10),
	})
	return err
}
