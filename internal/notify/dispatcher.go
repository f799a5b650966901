// Package notify delivers takedown resolution notifications to vendors and
// reviewers. Producers enqueue messages and get an immediate answer about
// whether the queue accepted them; a fixed pool of workers performs delivery
// in the background. Delivery outcome is never reported back to producers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/review-takedown-backend/internal/domain"
	"github.com/tbourn/review-takedown-backend/internal/repo"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer is saturated.
	ErrQueueFull = errors.New("notification queue full")
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("notification dispatcher closed")
)

// Message is one notification for one recipient on one channel.
type Message struct {
	RecipientRole     string
	RecipientID       string
	Channel           string
	Template          string
	TakedownRequestID string
	RequestNumber     string
	Decision          string
	Action            string
	Reason            string
}

// Dispatcher is an in-process notification queue.
type Dispatcher struct {
	db     *gorm.DB
	mailer Mailer
	log    zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	wg     sync.WaitGroup
}

// NewDispatcher returns a dispatcher with a buffer of queueSize messages.
// Call Start to begin delivery.
func NewDispatcher(db *gorm.DB, mailer Mailer, queueSize int, log zerolog.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if mailer == nil {
		mailer = LogMailer{Log: log}
	}
	return &Dispatcher{
		db:     db,
		mailer: mailer,
		log:    log.With().Str("component", "notify").Logger(),
		queue:  make(chan Message, queueSize),
	}
}

// Start launches workers that deliver until Close drains the queue.
func (d *Dispatcher) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for m := range d.queue {
				d.safeDeliver(ctx, m)
			}
		}()
	}
}

// Enqueue hands m to the workers without blocking.
func (d *Dispatcher) Enqueue(m Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		notificationsTotal.WithLabelValues(m.RecipientRole, m.Channel, "rejected").Inc()
		return ErrClosed
	}
	select {
	case d.queue <- m:
		notificationsTotal.WithLabelValues(m.RecipientRole, m.Channel, "enqueued").Inc()
		return nil
	default:
		notificationsTotal.WithLabelValues(m.RecipientRole, m.Channel, "rejected").Inc()
		return ErrQueueFull
	}
}

// Close stops accepting messages, delivers what is already queued and waits
// for the workers to exit. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// safeDeliver keeps one bad message from taking a worker down.
func (d *Dispatcher) safeDeliver(ctx context.Context, m Message) {
	defer func() {
		if r := recover(); r != nil {
			notificationsTotal.WithLabelValues(m.RecipientRole, m.Channel, "failed").Inc()
			d.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("takedown_id", m.TakedownRequestID).
				Msg("panic in notification worker")
		}
	}()

	if err := d.deliver(ctx, m); err != nil {
		notificationsTotal.WithLabelValues(m.RecipientRole, m.Channel, "failed").Inc()
		d.log.Warn().Err(err).
			Str("takedown_id", m.TakedownRequestID).
			Str("recipient", m.RecipientRole).
			Str("channel", m.Channel).
			Msg("notification delivery failed")
		return
	}
	notificationsTotal.WithLabelValues(m.RecipientRole, m.Channel, "delivered").Inc()
}

func (d *Dispatcher) deliver(ctx context.Context, m Message) error {
	switch m.Channel {
	case domain.ChannelInApp:
		payload, err := json.Marshal(payloadFor(m))
		if err != nil {
			return err
		}
		return repo.CreateNotification(ctx, d.db, &domain.Notification{
			RecipientRole:     m.RecipientRole,
			RecipientID:       m.RecipientID,
			Template:          m.Template,
			Subject:           Subject(m),
			Payload:           datatypes.JSON(payload),
			TakedownRequestID: m.TakedownRequestID,
		})
	case domain.ChannelEmail:
		return d.mailer.Send(ctx, m.RecipientID, Subject(m), body(m))
	default:
		return fmt.Errorf("unknown channel %q", m.Channel)
	}
}

var titleCaser = cases.Title(language.English)

// Subject renders the human-readable subject line for m.
func Subject(m Message) string {
	s := titleCaser.String(strings.ReplaceAll(m.Template, "_", " "))
	if m.RequestNumber != "" {
		s += " (" + m.RequestNumber + ")"
	}
	return s
}

func payloadFor(m Message) map[string]any {
	p := map[string]any{
		"request_id":     m.TakedownRequestID,
		"request_number": m.RequestNumber,
		"decision":       m.Decision,
	}
	if m.Action != "" {
		p["action"] = m.Action
	}
	// Reviewers see the outcome only, not the admin's reasoning.
	if m.RecipientRole == domain.RecipientVendor && m.Reason != "" {
		p["reason"] = m.Reason
	}
	return p
}

func body(m Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Takedown request %s was %s.", m.RequestNumber, domain.StatusForDecision(m.Decision))
	if m.Action != "" {
		fmt.Fprintf(&b, " Action taken on the review: %s.", m.Action)
	}
	if m.RecipientRole == domain.RecipientVendor && m.Reason != "" {
		fmt.Fprintf(&b, "\n\nReason: %s", m.Reason)
	}
	return b.String()
}
