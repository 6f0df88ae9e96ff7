package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/lotalloc/pkg/infrastructure/events"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_PublishesJSONByEventType(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "allocations", zerolog.Nop())

	event := events.NewEvent(events.AllocationClearedEvent, "L1", map[string]string{"order_line_id": "L1"})
	require.NoError(t, p.Handle(event))

	require.Len(t, ch.sent, 1)
	sent := ch.sent[0]
	assert.Equal(t, "allocations", sent.exchange)
	assert.Equal(t, events.AllocationClearedEvent, sent.key)
	assert.Equal(t, "application/json", sent.msg.ContentType)
	assert.Equal(t, "L1", sent.msg.Headers["stream_id"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(sent.msg.Body, &decoded))
	assert.Equal(t, events.AllocationClearedEvent, decoded["type"])
	assert.Equal(t, "L1", decoded["stream_id"])
}

func TestPublisher_FiltersTypes(t *testing.T) {
	p := NewPublisher(&fakeChannel{}, "allocations", zerolog.Nop(), events.AllocationCommittedEvent)

	assert.True(t, p.CanHandle(events.AllocationCommittedEvent))
	assert.False(t, p.CanHandle(events.AllocationDraftedEvent))
}

func TestPublisher_SubscribedToStore(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "allocations", zerolog.Nop(), events.AllocationClearedEvent)
	store := events.NewInMemoryEventStore()
	require.NoError(t, store.Subscribe([]string{events.AllocationClearedEvent}, p))

	require.NoError(t, store.AppendEvent("L1", events.NewEvent(events.AllocationClearedEvent, "L1", nil)))
	store.Wait()

	require.Len(t, ch.sent, 1)
}

func TestPublisher_ReturnsChannelErrors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := NewPublisher(ch, "allocations", zerolog.Nop())

	err := p.Handle(events.NewEvent(events.AllocationClearedEvent, "L1", nil))
	assert.ErrorContains(t, err, "channel closed")

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
