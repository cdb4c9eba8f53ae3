package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/cohort-outreach-mcp-server/internal/domain"
	"github.com/cohort-outreach-mcp-server/internal/patients"
)

// DefaultDedupeTTL is the window inside which an identical reminder to the
// same patient is suppressed.
const DefaultDedupeTTL = 24 * time.Hour

// DispatcherConfig tunes the dispatcher's resilience behavior.
type DispatcherConfig struct {
	DedupeTTL     time.Duration
	RatePerSecond float64
	RateBurst     int
}

// Dispatcher fans reminders out over the configured channel senders. Each
// outbound channel sits behind a circuit breaker and a shared rate limiter.
// Delivery is attempted once per channel; failures are recorded on the
// receipt, never retried.
type Dispatcher struct {
	log       *logrus.Logger
	store     patients.Store
	deduper   Deduper
	dedupeTTL time.Duration
	limiter   *rate.Limiter

	senders  map[Channel]Sender
	breakers map[Channel]*gobreaker.CircuitBreaker
}

// NewDispatcher creates a dispatcher over the given senders.
func NewDispatcher(logger *logrus.Logger, store patients.Store, deduper Deduper, cfg DispatcherConfig, senders ...Sender) *Dispatcher {
	ttl := cfg.DedupeTTL
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 10
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 5
	}

	d := &Dispatcher{
		log:       logger,
		store:     store,
		deduper:   deduper,
		dedupeTTL: ttl,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), burst),
		senders:   make(map[Channel]Sender),
		breakers:  make(map[Channel]*gobreaker.CircuitBreaker),
	}

	for _, sender := range senders {
		channel := sender.Channel()
		d.senders[channel] = sender
		d.breakers[channel] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(channel),
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"channel": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Delivery circuit breaker state changed")
			},
		})
	}

	return d
}

// FireReminder resolves the patient, renders the message, and attempts
// delivery over every channel implied by the request priority. The receipt
// is always returned when the request is valid and the patient exists; a
// DeliveryError accompanies it only when no channel accepted the reminder.
func (d *Dispatcher) FireReminder(ctx context.Context, req *ReminderRequest) (*DeliveryReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	patient, err := d.store.Get(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	reminderType, message := BuildMessage(req, patient.Name)

	receipt := &DeliveryReceipt{
		ID:        uuid.New().String(),
		PatientID: req.PatientID,
		Cohort:    req.Cohort,
		Type:      reminderType,
		Priority:  req.Priority,
		Message:   message,
		FiredAt:   time.Now().UTC(),
	}

	seen, err := d.deduper.MarkSeen(ctx, dedupeKey(req.PatientID, reminderType, message), d.dedupeTTL)
	if err != nil {
		// Dedupe backend trouble must not block outreach
		d.log.WithError(err).Warn("Dedupe check failed, delivering anyway")
	}
	if seen {
		receipt.Deduplicated = true
		d.log.WithFields(logrus.Fields{
			"patient_id":    req.PatientID,
			"reminder_type": reminderType,
		}).Info("Reminder suppressed as duplicate")
		return receipt, nil
	}

	for _, channel := range ChannelsForTier(req.Priority) {
		result := ChannelResult{Channel: channel}

		if err := d.deliver(ctx, channel, receipt); err != nil {
			result.Error = err.Error()
			d.log.WithFields(logrus.Fields{
				"patient_id": req.PatientID,
				"channel":    channel,
				"error":      err,
			}).Error("Reminder delivery failed")
		} else {
			result.Delivered = true
		}

		receipt.Channels = append(receipt.Channels, result)
	}

	if !receipt.Delivered() {
		return receipt, &domain.DeliveryError{
			Channel:   "all",
			PatientID: req.PatientID,
			Reason:    "no channel accepted the reminder",
		}
	}

	d.log.WithFields(logrus.Fields{
		"delivery_id":   receipt.ID,
		"patient_id":    req.PatientID,
		"reminder_type": reminderType,
		"priority":      req.Priority,
		"channels":      len(receipt.Channels),
	}).Info("Reminder dispatched")

	return receipt, nil
}

func (d *Dispatcher) deliver(ctx context.Context, channel Channel, receipt *DeliveryReceipt) error {
	sender, ok := d.senders[channel]
	if !ok {
		return &domain.DeliveryError{
			Channel:   string(channel),
			PatientID: receipt.PatientID,
			Reason:    "no sender configured",
		}
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return &domain.DeliveryError{
			Channel:   string(channel),
			PatientID: receipt.PatientID,
			Reason:    "rate limit wait aborted",
			Cause:     err,
		}
	}

	_, err := d.breakers[channel].Execute(func() (interface{}, error) {
		return nil, sender.Send(ctx, receipt)
	})
	if err != nil {
		reason := "send failed"
		if err == gobreaker.ErrOpenState {
			reason = "channel unavailable (circuit breaker open)"
		}
		return &domain.DeliveryError{
			Channel:   string(channel),
			PatientID: receipt.PatientID,
			Reason:    reason,
			Cause:     err,
		}
	}

	return nil
}

// BreakerStates reports the current circuit breaker state per channel.
func (d *Dispatcher) BreakerStates() map[Channel]string {
	states := make(map[Channel]string, len(d.breakers))
	for channel, breaker := range d.breakers {
		states[channel] = breaker.State().String()
	}
	return states
}

// Close releases the dedupe backend.
func (d *Dispatcher) Close() error {
	if d.deduper == nil {
		return nil
	}
	if err := d.deduper.Close(); err != nil {
		return fmt.Errorf("closing deduper: %w", err)
	}
	return nil
}
