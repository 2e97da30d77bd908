package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ledger-service/internal/domain"

	"github.com/segmentio/kafka-go"
)

const (
	EventTransferCompleted  = "transfer.completed"
	EventCardSpendCompleted = "card_spend.completed"
)

// TransactionEventPublisher emits ledger events to Kafka after a unit of
// work commits. Publishing is best effort: a failed publish never affects
// the committed ledger result.
type TransactionEventPublisher struct {
	writer *kafka.Writer
}

func NewTransactionEventPublisher(brokers []string, topic string) *TransactionEventPublisher {
	return &TransactionEventPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// TransactionEvent is the wire payload for ledger events.
type TransactionEvent struct {
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	FromAccount   string    `json:"from_account,omitempty"`
	ToAccount     string    `json:"to_account,omitempty"`
	CardID        string    `json:"card_id,omitempty"`
	Merchant      string    `json:"merchant,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publish sends one event, keyed by transaction id so one transaction's
// events stay in partition order.
func (p *TransactionEventPublisher) Publish(ctx context.Context, event *TransactionEvent) error {
	event.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TransactionID),
		Value: payload,
	})
}

// PublishTransferCompleted emits the event for a committed transfer.
func (p *TransactionEventPublisher) PublishTransferCompleted(ctx context.Context, txn *domain.Transaction, fromAccount, toAccount string) error {
	return p.Publish(ctx, &TransactionEvent{
		EventType:     EventTransferCompleted,
		TransactionID: txn.ID,
		Type:          string(txn.Type),
		Amount:        txn.Amount.String(),
		FromAccount:   fromAccount,
		ToAccount:     toAccount,
	})
}

// PublishCardSpendCompleted emits the event for a committed card spend.
func (p *TransactionEventPublisher) PublishCardSpendCompleted(ctx context.Context, txn *domain.Transaction, merchant string) error {
	cardID := ""
	if txn.CardID != nil {
		cardID = *txn.CardID
	}
	return p.Publish(ctx, &TransactionEvent{
		EventType:     EventCardSpendCompleted,
		TransactionID: txn.ID,
		Type:          string(txn.Type),
		Amount:        txn.Amount.String(),
		CardID:        cardID,
		Merchant:      merchant,
	})
}

// Close flushes and closes the underlying writer.
func (p *TransactionEventPublisher) Close() error {
	return p.writer.Close()
}
