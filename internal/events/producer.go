package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/ngbank/aml-compliance/internal/config"
	"github.com/ngbank/aml-compliance/internal/domain"
)

// LifecycleProducer publishes alert and case lifecycle events outward so
// downstream systems (case management UIs, regulator feeds) can react
// without polling the store directly.
type LifecycleProducer struct {
	producer   sarama.SyncProducer
	alertTopic string
}

func NewLifecycleProducer(cfg config.KafkaConfig) (*LifecycleProducer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Idempotent = cfg.EnableIdempotent
	if cfg.EnableIdempotent {
		saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
		saramaCfg.Net.MaxOpenRequests = 1
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	return &LifecycleProducer{producer: producer, alertTopic: cfg.AlertTopic}, nil
}

type alertEvent struct {
	EventType     string    `json:"event_type"`
	AlertID       uuid.UUID `json:"alert_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	Severity      string    `json:"severity"`
	Status        string    `json:"status"`
	PublishedAt   time.Time `json:"published_at"`
}

// PublishAlertGenerated announces a newly generated alert, consumed by
// downstream case-triage tooling.
func (p *LifecycleProducer) PublishAlertGenerated(ctx context.Context, a *domain.Alert) error {
	return p.publish(ctx, p.alertTopic, a.ID.String(), alertEvent{
		EventType:   "alert_generated",
		AlertID:     a.ID,
		CustomerID:  a.CustomerID,
		Severity:    string(a.Severity),
		Status:      string(a.Status),
		PublishedAt: time.Now().UTC(),
	})
}

type caseEvent struct {
	EventType   string    `json:"event_type"`
	CaseID      uuid.UUID `json:"case_id"`
	CaseNumber  string    `json:"case_number"`
	Status      string    `json:"status"`
	PublishedAt time.Time `json:"published_at"`
}

// PublishCaseStatusChanged announces a case workflow transition.
func (p *LifecycleProducer) PublishCaseStatusChanged(ctx context.Context, c *domain.Case) error {
	return p.publish(ctx, p.alertTopic, c.ID.String(), caseEvent{
		EventType:   "case_status_changed",
		CaseID:      c.ID,
		CaseNumber:  c.CaseNumber,
		Status:      string(c.Status),
		PublishedAt: time.Now().UTC(),
	})
}

func (p *LifecycleProducer) publish(_ context.Context, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}
	_, _, err = p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (p *LifecycleProducer) Close() error {
	return p.producer.Close()
}
