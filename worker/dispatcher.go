package worker

import (
	"context"
	"log"
	"sync"

	"github.com/badoux/checkmail"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"venturelink/engine"
	"venturelink/models"
)

// Mailer sends one event mail per recipient. utils.Mailer is the production
// implementation; tests use a fake.
type Mailer interface {
	SendEventMail(payload engine.EmailPayload) error
}

// Dispatcher delivers the outbound effects of committed state changes:
// one Notification row per recipient, a push to any live websocket
// subscriber, and a best-effort email. It runs after the transactional
// commit; none of its failures ever surface as an operation result or roll
// a state change back.
type Dispatcher struct {
	db     *gorm.DB
	mailer Mailer
	logger *log.Logger

	queue chan engine.Effect

	mu          sync.RWMutex
	subscribers map[uint][]chan models.Notification
}

func NewDispatcher(db *gorm.DB, mailer Mailer, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		db:          db,
		mailer:      mailer,
		logger:      logger,
		queue:       make(chan engine.Effect, 256),
		subscribers: make(map[uint][]chan models.Notification),
	}
}

// Enqueue hands effects off for delivery. It never blocks the caller: when
// the queue is full the effect is delivered inline on the calling goroutine.
func (d *Dispatcher) Enqueue(effects ...engine.Effect) {
	for _, effect := range effects {
		select {
		case d.queue <- effect:
		default:
			d.logger.Printf("dispatch queue full, delivering %s inline", effect.Event)
			d.dispatch(effect)
		}
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Println("Starting effect dispatcher...")
	for {
		select {
		case effect := <-d.queue:
			d.dispatch(effect)
		case <-ctx.Done():
			d.logger.Println("Stopping effect dispatcher...")
			return
		}
	}
}

func (d *Dispatcher) dispatch(effect engine.Effect) {
	for _, userID := range effect.RecipientUserIDs {
		notification := models.Notification{
			UserID:        userID,
			EventType:     effect.Event,
			Message:       effect.Message,
			NegotiationID: effect.NegotiationID,
			MeetingID:     effect.MeetingID,
			EventKey:      effect.EventKey,
		}
		if err := d.db.Create(&notification).Error; err != nil {
			logrus.WithFields(logrus.Fields{
				"event":   effect.Event,
				"user_id": userID,
			}).WithError(err).Error("failed to persist notification")
			sentry.CaptureException(err)
			continue
		}
		d.push(notification)
	}

	if effect.Email != nil {
		d.sendEmail(effect)
	}
}

func (d *Dispatcher) sendEmail(effect engine.Effect) {
	payload := *effect.Email

	// Drop recipients with unusable addresses instead of failing the batch.
	valid := payload.Recipients[:0]
	for _, recipient := range payload.Recipients {
		if err := checkmail.ValidateFormat(recipient.Address); err != nil {
			d.logger.Printf("skipping invalid recipient address %q: %v", recipient.Address, err)
			continue
		}
		valid = append(valid, recipient)
	}
	payload.Recipients = valid
	if len(payload.Recipients) == 0 {
		return
	}

	if err := d.mailer.SendEventMail(payload); err != nil {
		logrus.WithFields(logrus.Fields{
			"event":   effect.Event,
			"subject": payload.Subject,
		}).WithError(err).Error("failed to send event mail")
		sentry.CaptureException(err)
	}
}

// Subscribe registers a live notification feed for a user. The returned
// cancel func must be called when the consumer goes away.
func (d *Dispatcher) Subscribe(userID uint) (<-chan models.Notification, func()) {
	ch := make(chan models.Notification, 16)

	d.mu.Lock()
	d.subscribers[userID] = append(d.subscribers[userID], ch)
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		channels := d.subscribers[userID]
		for i, c := range channels {
			if c == ch {
				d.subscribers[userID] = append(channels[:i], channels[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

// push fans a persisted notification out to live subscribers. Slow consumers
// are skipped; they will see the row in their inbox.
func (d *Dispatcher) push(notification models.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, ch := range d.subscribers[notification.UserID] {
		select {
		case ch <- notification:
		default:
		}
	}
}
