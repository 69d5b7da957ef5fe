// Package notify sends the digest of entries that haven't been notified yet.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdholdren/upwatch/internal/upwatch"
)

var (
	// ErrFatal marks a send failure that retrying won't fix, like bad
	// credentials or a rejected address. The watcher stops on it.
	ErrFatal = errors.New("fatal notification error")
	// ErrTransient marks a send failure worth retrying next cycle.
	ErrTransient = errors.New("transient notification error")
)

// Message is a rendered digest.
type Message struct {
	Subject string
	HTML    string
}

type (
	Renderer interface {
		Render(entries []upwatch.Entry, now time.Time) (Message, error)
	}

	Sender interface {
		Send(ctx context.Context, msg Message) error
	}
)

// Trigger batches every unsent entry into one message.
type Trigger struct {
	repo     upwatch.Repository
	renderer Renderer
	sender   Sender
	now      func() time.Time
}

func NewTrigger(repo upwatch.Repository, renderer Renderer, sender Sender) *Trigger {
	return &Trigger{
		repo:     repo,
		renderer: renderer,
		sender:   sender,
		now:      time.Now,
	}
}

// Notify sends all unsent entries, newest first, and marks exactly those as
// sent once the send succeeds.
//
// Only errors wrapping [ErrFatal] are returned. Anything else is logged and
// the entries are left for the next call.
func (t *Trigger) Notify(ctx context.Context) error {
	entries, err := t.repo.UnsentEntries(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "error fetching unsent entries", "error", err)
		return nil
	}
	if len(entries) == 0 {
		return nil
	}

	msg, err := t.renderer.Render(entries, t.now())
	if err != nil {
		slog.ErrorContext(ctx, "error rendering digest", "error", err)
		return nil
	}

	err = t.sender.Send(ctx, msg)
	if errors.Is(err, ErrFatal) {
		return fmt.Errorf("error sending digest: %w", err)
	}
	if err != nil {
		slog.WarnContext(ctx, "error sending digest, will retry", "count", len(entries), "error", err)
		return nil
	}

	if err := t.repo.MarkSent(ctx, upwatch.EntryIDs(entries)); err != nil {
		// Entries go out again next time; better twice than never.
		slog.ErrorContext(ctx, "error marking entries sent", "error", err)
		return nil
	}
	slog.InfoContext(ctx, "sent digest", "count", len(entries))

	return nil
}
