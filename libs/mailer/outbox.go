package mailer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OutboxEntry is a message captured by an outbox instead of being delivered.
type OutboxEntry struct {
	ID      string    `json:"id"`
	Message Message   `json:"message"`
	Raw     string    `json:"raw"`
	SentAt  time.Time `json:"sent_at"`
}

// OutboxStore is the read side of an outbox.
type OutboxStore interface {
	// List returns up to limit entries, newest first. A limit <= 0 returns all entries.
	List(ctx context.Context, limit int) ([]OutboxEntry, error)
	Get(ctx context.Context, id string) (*OutboxEntry, error)
}

// Outbox keeps sent messages in memory, in send order.
type Outbox struct {
	mu      sync.Mutex
	entries []OutboxEntry
	now     func() time.Time
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{now: time.Now}
}

var defaultOutbox = NewOutbox()

// DefaultOutbox returns the process-wide outbox.
func DefaultOutbox() *Outbox {
	return defaultOutbox
}

// Sent returns the messages captured by the process-wide outbox.
func Sent() []OutboxEntry {
	return defaultOutbox.Entries()
}

// ResetOutbox empties the process-wide outbox.
func ResetOutbox() {
	defaultOutbox.Reset()
}

// Append records msg and returns the stored entry.
func (o *Outbox) Append(msg Message) (OutboxEntry, error) {
	raw, err := Raw(msg)
	if err != nil {
		return OutboxEntry{}, err
	}

	msg.To = append([]string(nil), msg.To...)
	entry := OutboxEntry{
		ID:      uuid.New().String(),
		Message: msg,
		Raw:     raw,
		SentAt:  o.now().UTC(),
	}

	o.mu.Lock()
	o.entries = append(o.entries, entry)
	o.mu.Unlock()
	return entry, nil
}

// Entries returns a copy of all entries in send order.
func (o *Outbox) Entries() []OutboxEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]OutboxEntry(nil), o.entries...)
}

// Len returns the number of captured messages.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

// Last returns the most recently captured entry.
func (o *Outbox) Last() (OutboxEntry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.entries) == 0 {
		return OutboxEntry{}, false
	}
	return o.entries[len(o.entries)-1], true
}

// Reset drops all captured entries.
func (o *Outbox) Reset() {
	o.mu.Lock()
	o.entries = nil
	o.mu.Unlock()
}

// List implements OutboxStore.
func (o *Outbox) List(ctx context.Context, limit int) ([]OutboxEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(o.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]OutboxEntry, 0, n)
	for i := len(o.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, o.entries[i])
	}
	return out, nil
}

// Get implements OutboxStore.
func (o *Outbox) Get(ctx context.Context, id string) (*OutboxEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.entries {
		if o.entries[i].ID == id {
			entry := o.entries[i]
			return &entry, nil
		}
	}
	return nil, ErrNotFound
}

// OutboxProvider captures messages in an Outbox instead of delivering them.
type OutboxProvider struct {
	outbox *Outbox
}

// NewOutboxProvider creates a provider writing to outbox, or to the
// process-wide outbox when outbox is nil.
func NewOutboxProvider(outbox *Outbox) *OutboxProvider {
	if outbox == nil {
		outbox = defaultOutbox
	}
	return &OutboxProvider{outbox: outbox}
}

// Name returns the provider name.
func (p *OutboxProvider) Name() string {
	return "outbox"
}

// Outbox returns the outbox the provider writes to.
func (p *OutboxProvider) Outbox() *Outbox {
	return p.outbox
}

// Send appends msg to the outbox.
func (p *OutboxProvider) Send(ctx context.Context, msg Message) (SendResult, error) {
	if err := ctx.Err(); err != nil {
		return SendResult{}, err
	}
	entry, err := p.outbox.Append(msg)
	if err != nil {
		return SendResult{}, err
	}
	return SendResult{ProviderMessageID: entry.ID}, nil
}
