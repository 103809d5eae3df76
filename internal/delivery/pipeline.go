// Package delivery mirrors newly written messages to their receivers and
// notifies the receiver's devices.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/relay/internal/message"
	"github.com/matheus3301/relay/internal/notify"
	"github.com/matheus3301/relay/internal/store"
	"github.com/matheus3301/relay/internal/user"
)

// Event is a message document creation.
type Event struct {
	Params store.MessageParams
	Record map[string]any
}

// UpdateEvent is a message document change.
type UpdateEvent struct {
	Params store.MessageParams
	Before map[string]any
	After  map[string]any
}

// Store is the record store subset the pipeline writes to.
type Store interface {
	Set(ctx context.Context, path string, rec store.Record) error
	Update(ctx context.Context, path string, fields store.Record) error
}

// Ledger de-duplicates notifications across replays of the same event.
type Ledger interface {
	ClaimDelivery(ctx context.Context, key, receiver string) (bool, error)
	RecordDelivery(ctx context.Context, key string, success, failure int) error
}

// Users resolves receivers.
type Users interface {
	Lookup(ctx context.Context, id string) (user.User, bool, error)
}

// Notifier fans a payload out to device tokens.
type Notifier interface {
	Send(ctx context.Context, tokens []string, payload map[string]any) notify.Result
}

// Pipeline runs the delivery steps for one message event at a time. It
// holds no per-message state and is safe for concurrent use.
type Pipeline struct {
	store    Store
	users    Users
	notifier Notifier
	ledger   Ledger
	logger   *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLedger enables notification de-duplication through l.
func WithLedger(l Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// NewPipeline creates a pipeline.
func NewPipeline(s Store, users Users, n Notifier, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{store: s, users: users, notifier: n, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnMessageCreated handles a newly created message document. A record whose
// status is already past none is a receiver copy and is left alone. Text
// messages get a receiver copy at status sent, then the sender copy moves
// to sent, then the receiver's devices are notified. The run stops at the
// first failing step.
func (p *Pipeline) OnMessageCreated(ctx context.Context, evt Event) Outcome {
	id := evt.Params.MessageID

	if status, ok := message.StatusOf(evt.Record); ok && status != string(message.StatusNone) {
		return skip(id, StepGuard, "mirror copy with status "+status)
	}

	m, err := message.Decode(evt.Record)
	if err != nil {
		return fail(id, StepDecode, err)
	}
	id = m.ID

	text, ok := m.Content.(message.Text)
	if !ok {
		return skip(id, StepVariant, fmt.Sprintf("no creation handling for %s messages", m.Type()))
	}

	return p.deliver(ctx, m, func(sender user.User) map[string]any {
		return map[string]any{
			"senderId":          m.Sender,
			"receiverId":        m.Receiver,
			"senderPhoneNumber": sender.Phone.Value,
			"senderPhoto":       sender.Photo,
			"messageId":         m.ID,
			"messageText":       text.Body,
			"type":              string(message.TypeText),
		}
	})
}

// OnMessageUpdated handles the upload completion of image and video
// messages: the sender's copy is still at none and its media URI just
// changed to an http(s) URL. It then runs the same steps as creation.
func (p *Pipeline) OnMessageUpdated(ctx context.Context, evt UpdateEvent) Outcome {
	id := evt.Params.MessageID

	if status, ok := message.StatusOf(evt.After); !ok || status != string(message.StatusNone) {
		return skip(id, StepGuard, "not awaiting upload")
	}

	m, err := message.Decode(evt.After)
	if err != nil {
		return fail(id, StepDecode, err)
	}
	id = m.ID

	var (
		key, payloadKey string
		caption         string
	)
	switch c := m.Content.(type) {
	case message.Image:
		key, payloadKey, caption = "imageUri", "messageImage", c.Caption
	case message.Video:
		key, payloadKey, caption = "videoUri", "messageVideo", c.Caption
	default:
		return skip(id, StepVariant, fmt.Sprintf("no upload handling for %s messages", m.Type()))
	}

	uri, _ := message.MediaURI(m.Content)
	if before, _ := evt.Before[key].(string); before == uri {
		return skip(id, StepGuard, "media uri unchanged")
	}
	if !isURL(uri) {
		return skip(id, StepGuard, "media uri is not an http(s) url")
	}

	return p.deliver(ctx, m, func(sender user.User) map[string]any {
		return map[string]any{
			"senderId":          m.Sender,
			"receiverId":        m.Receiver,
			"senderPhoneNumber": sender.Phone.Value,
			"senderPhoto":       sender.Photo,
			"messageId":         m.ID,
			"messageText":       caption,
			payloadKey:          uri,
			"type":              string(m.Type()),
		}
	})
}

// deliver runs the receiver copy, sender status, token and notify steps.
// The profile passed to payload is the receiver's user record, whose phone
// and photo are reported as the sender's in the notification.
func (p *Pipeline) deliver(ctx context.Context, m message.Message, payload func(user.User) map[string]any) Outcome {
	sent := m.WithStatus(message.StatusSent)

	if err := p.store.Set(ctx, store.MessagePath(m.Receiver, m.Sender, m.ID), sent.Encode()); err != nil {
		return fail(m.ID, StepReceiverCopy, err)
	}

	if err := p.store.Update(ctx, store.MessagePath(m.Sender, m.Receiver, m.ID),
		store.Record{"status": string(message.StatusSent)}); err != nil {
		return fail(m.ID, StepSenderStatus, err)
	}

	receiver, ok, err := p.users.Lookup(ctx, m.Receiver)
	if err != nil {
		return fail(m.ID, StepTokens, fmt.Errorf("lookup receiver %s: %w", m.Receiver, err))
	}
	if !ok {
		return skip(m.ID, StepTokens, "receiver not registered")
	}
	if len(receiver.Tokens) == 0 {
		return skip(m.ID, StepTokens, "receiver has no push tokens")
	}

	dedupeKey := m.ID + ":" + m.Receiver
	if p.ledger != nil {
		won, err := p.ledger.ClaimDelivery(ctx, dedupeKey, m.Receiver)
		if err != nil {
			return fail(m.ID, StepDedupe, err)
		}
		if !won {
			return skip(m.ID, StepDedupe, "notification already sent")
		}
	}

	res := p.notifier.Send(ctx, receiver.Tokens, payload(receiver))

	if p.ledger != nil {
		if err := p.ledger.RecordDelivery(ctx, dedupeKey, res.SuccessCount, res.FailureCount); err != nil {
			p.logger.Warn("record delivery", zap.String("key", dedupeKey), zap.Error(err))
		}
	}

	return Outcome{MessageID: m.ID, Step: StepNotify, Notified: true, Result: res}
}

// IsDecodeError reports whether err came from a malformed message record.
func IsDecodeError(err error) bool {
	return errors.Is(err, message.ErrMalformed) || errors.Is(err, message.ErrUnknownType)
}
