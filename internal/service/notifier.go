package service

import (
	"context"
	"errors"
	"sync"

	"points_bot/internal/model"
)

// Notifiers fans a notice out to several notifiers. Every notifier is tried;
// the joined errors are returned.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, chatID int64, notice model.Outcome) error {
	var errs []error
	for _, n := range ns {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, chatID, notice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type outboxKey struct{}

type queuedNotice struct {
	notifier Notifier
	chatID   int64
	notice   model.Outcome
}

// outbox holds notices raised under the router lock until the event is
// done.
type outbox struct {
	mu      sync.Mutex
	notices []queuedNotice
}

func withOutbox(ctx context.Context) (context.Context, *outbox) {
	out := &outbox{}
	return context.WithValue(ctx, outboxKey{}, out), out
}

func outboxFrom(ctx context.Context) (*outbox, bool) {
	out, ok := ctx.Value(outboxKey{}).(*outbox)
	return out, ok
}

func (o *outbox) add(n Notifier, chatID int64, notice model.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, queuedNotice{notifier: n, chatID: chatID, notice: notice})
}

func (o *outbox) flush(ctx context.Context) {
	o.mu.Lock()
	notices := o.notices
	o.notices = nil
	o.mu.Unlock()

	for _, q := range notices {
		deliver(ctx, q.notifier, q.chatID, q.notice)
	}
}
