package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

const (
	EventIntakeSubmitted  = "intake.finalized"
	EventResumeLinkIssued = "intake.resume_link_issued"
	EventDraftReminder    = "intake.draft_reminder"
	EventStatusChanged    = "intake.status_changed"
)

// intakeEvent is the envelope every message on the intake topic carries.
type intakeEvent struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// KafkaIntakeNotifier publishes notifications as events for the mailer and
// the staff dashboard to consume.
type KafkaIntakeNotifier struct {
	producer sarama.SyncProducer
	topic    string
	source   string
	logger   *slog.Logger
	now      func() time.Time
}

func NewKafkaIntakeNotifier(producer sarama.SyncProducer, topic, source string, logger *slog.Logger) *KafkaIntakeNotifier {
	return &KafkaIntakeNotifier{producer: producer, topic: topic, source: source, logger: logger, now: time.Now}
}

// NewSaramaSyncProducer builds an idempotent producer that waits for all
// in-sync replicas.
func NewSaramaSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_3_2_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	return sarama.NewSyncProducer(brokers, cfg)
}

func (n *KafkaIntakeNotifier) Close() error {
	if n == nil || n.producer == nil {
		return nil
	}
	return n.producer.Close()
}

func (n *KafkaIntakeNotifier) IntakeSubmitted(ctx context.Context, in IntakeSubmittedNotification) error {
	return n.send(ctx, EventIntakeSubmitted, strconv.FormatUint(uint64(in.IntakeID), 10), map[string]any{
		"intake_id":             in.IntakeID,
		"email":                 in.Email,
		"full_name":             in.FullName,
		"purchased_service":     in.PurchasedService,
		"paypal_transaction_id": in.PaypalTransactionID,
		"order_reference":       in.OrderReference,
		"submitted_at":          in.SubmittedAt,
	})
}

func (n *KafkaIntakeNotifier) ResumeLinkIssued(ctx context.Context, in ResumeLinkNotification) error {
	return n.send(ctx, EventResumeLinkIssued, in.OrderReference, map[string]any{
		"email":           in.Email,
		"first_name":      in.FirstName,
		"order_reference": in.OrderReference,
		"resume_url":      in.ResumeURL,
	})
}

func (n *KafkaIntakeNotifier) DraftReminder(ctx context.Context, in DraftReminderNotification) error {
	return n.send(ctx, EventDraftReminder, "draft-"+strconv.FormatUint(uint64(in.DraftID), 10), map[string]any{
		"draft_id":      in.DraftID,
		"email":         in.Email,
		"first_name":    in.FirstName,
		"resume_url":    in.ResumeURL,
		"last_saved_at": in.LastSavedAt,
	})
}

func (n *KafkaIntakeNotifier) StatusChanged(ctx context.Context, in StatusChangedNotification) error {
	return n.send(ctx, EventStatusChanged, strconv.FormatUint(uint64(in.IntakeID), 10), map[string]any{
		"intake_id":  in.IntakeID,
		"status":     in.Status,
		"changed_by": in.ChangedBy,
		"changed_at": in.ChangedAt,
	})
}

func (n *KafkaIntakeNotifier) send(ctx context.Context, kind, key string, data any) error {
	if n == nil || n.producer == nil {
		return errors.New("sync producer is not initialized")
	}
	event := intakeEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		Source:     n.source,
		OccurredAt: n.now().UTC(),
		Data:       data,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-kind"), Value: []byte(kind)},
			{Key: []byte("event-id"), Value: []byte(event.ID)},
			{Key: []byte("source"), Value: []byte(n.source)},
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
	}
	part, off, err := n.producer.SendMessage(msg)
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to send kafka message", "topic", n.topic, "kind", kind, "error", err)
		return fmt.Errorf("send kafka message: %w", err)
	}
	n.logger.InfoContext(ctx, "kafka message sent",
		"topic", n.topic,
		"kind", kind,
		"partition", part,
		"offset", off,
		"bytes", len(body),
	)
	return nil
}
