// Package events wires Kafka to the Monitoring Engine (§4.4, §9): the
// consumer ingests transaction events into ProcessTransaction, the
// producer publishes alert and case lifecycle events outward. Adapted
// from the teacher's generic AuditEvent consumer, which is retargeted
// here at the domain's actual transaction-ingestion shape instead of a
// map[string]interface{} passthrough.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ngbank/aml-compliance/internal/config"
	"github.com/ngbank/aml-compliance/internal/domain"
	"github.com/ngbank/aml-compliance/internal/monitoring"
)

// TransactionIngestor is the narrow slice of the Monitoring Engine the
// consumer drives.
type TransactionIngestor interface {
	ProcessTransaction(ctx context.Context, actor uuid.UUID, in monitoring.ProcessInput) (*domain.Transaction, []*domain.Alert, error)
}

// transactionMessage is the wire shape published to the transaction
// topic by upstream core-banking producers.
type transactionMessage struct {
	TransactionID      string          `json:"transaction_id"`
	CustomerID         uuid.UUID       `json:"customer_id"`
	TransactionType    string          `json:"transaction_type"`
	TransactionMethod  string          `json:"transaction_method"`
	Channel            string          `json:"channel"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	AccountNumber      string          `json:"account_number"`
	BeneficiaryName    string          `json:"beneficiary_name"`
	BeneficiaryAccount string          `json:"beneficiary_account"`
	BeneficiaryBank    string          `json:"beneficiary_bank"`
	BeneficiaryCountry string          `json:"beneficiary_country"`
	HomeCountry        string          `json:"home_country"`
	Description        string          `json:"description"`
	Location           string          `json:"location"`
}

// TransactionConsumer consumes the transaction topic and feeds every
// message through the Monitoring Engine, persisting the resulting
// transaction and any alerts before acknowledging the offset.
type TransactionConsumer struct {
	consumerGroup sarama.ConsumerGroup
	engine        TransactionIngestor
	systemActor   uuid.UUID
	topics        []string
	logger        *zap.Logger
}

func NewTransactionConsumer(cfg config.KafkaConfig, engine TransactionIngestor, logger *zap.Logger) (*TransactionConsumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaCfg.Version = sarama.V2_8_0_0

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &TransactionConsumer{
		consumerGroup: consumerGroup,
		engine:        engine,
		systemActor:   uuid.Nil,
		topics:        []string{cfg.TransactionTopic},
		logger:        logger,
	}, nil
}

func (c *TransactionConsumer) Start(ctx context.Context) error {
	handler := &transactionConsumerHandler{engine: c.engine, systemActor: c.systemActor, logger: c.logger}

	for {
		if err := c.consumerGroup.Consume(ctx, c.topics, handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("error from transaction consumer", zap.Error(err))
			time.Sleep(5 * time.Second)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *TransactionConsumer) Close() error {
	return c.consumerGroup.Close()
}

type transactionConsumerHandler struct {
	engine      TransactionIngestor
	systemActor uuid.UUID
	logger      *zap.Logger
}

func (h *transactionConsumerHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *transactionConsumerHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *transactionConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.processMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

func (h *transactionConsumerHandler) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) {
	var tm transactionMessage
	if err := json.Unmarshal(msg.Value, &tm); err != nil {
		h.logger.Error("failed to unmarshal transaction message", zap.Error(err))
		return
	}
	if tm.CustomerID == uuid.Nil {
		h.logger.Error("transaction message missing customer_id", zap.String("transaction_id", tm.TransactionID))
		return
	}

	in := monitoring.ProcessInput{
		TransactionID:      tm.TransactionID,
		CustomerID:         tm.CustomerID,
		TransactionType:    tm.TransactionType,
		TransactionMethod:  tm.TransactionMethod,
		Channel:            tm.Channel,
		Money:              domain.Money{Amount: tm.Amount, Currency: currencyOrDefault(tm.Currency)},
		AccountNumber:      tm.AccountNumber,
		BeneficiaryName:    tm.BeneficiaryName,
		BeneficiaryAccount: tm.BeneficiaryAccount,
		BeneficiaryBank:    tm.BeneficiaryBank,
		BeneficiaryCountry: tm.BeneficiaryCountry,
		HomeCountry:        tm.HomeCountry,
		Description:        tm.Description,
		Location:           tm.Location,
	}

	const maxRetries = 3
	var err error
	for i := 0; i < maxRetries; i++ {
		_, _, err = h.engine.ProcessTransaction(ctx, h.systemActor, in)
		if err == nil {
			return
		}
		h.logger.Error("failed to process transaction",
			zap.String("transaction_id", tm.TransactionID),
			zap.Error(err),
			zap.Int("retry", i+1),
		)
		if i < maxRetries-1 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}
	h.logger.Error("dropping transaction after retries", zap.String("transaction_id", tm.TransactionID))
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return domain.DefaultCurrency
	}
	return currency
}
