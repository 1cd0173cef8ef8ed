package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"taxready-service/internal/models"
	"taxready-service/internal/repository"
)

const (
	billingStreamName     = "BILLING_EVENTS"
	invoiceSettledSubject = "billing.invoice.settled"

	// Category booked when a settlement event does not name one
	defaultInvoiceCategory = "Contract Payments"
)

// InvoiceSettledEvent represents the event published by the billing service
// when a client settles an invoice
type InvoiceSettledEvent struct {
	EventType   string          `json:"eventType"`
	SessionID   string          `json:"sessionId"`
	InvoiceID   string          `json:"invoiceId"`
	ClientName  string          `json:"clientName"`
	Category    string          `json:"category,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	WHTWithheld decimal.Decimal `json:"whtWithheld"`
	SettledAt   time.Time       `json:"settledAt"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Subscriber books settled invoices into the ledger as income rows
type Subscriber struct {
	conn         *nats.Conn
	js           jetstream.JetStream
	repo         repository.LedgerRepositoryInterface
	logger       *logrus.Entry
	consumerName string
}

// NewSubscriber creates a new event subscriber
func NewSubscriber(repo repository.LedgerRepositoryInterface, logger *logrus.Logger) (*Subscriber, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		return nil, fmt.Errorf("NATS_URL not set")
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("taxready-service-subscriber"),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	hostname, _ := os.Hostname()

	return &Subscriber{
		conn:         conn,
		js:           js,
		repo:         repo,
		logger:       logger.WithField("component", "events.subscriber"),
		consumerName: fmt.Sprintf("taxready-invoice-%s", hostname),
	}, nil
}

// Start begins listening for invoice settlement events
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.ensureStream(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to ensure BILLING_EVENTS stream")
	}

	go s.consumeInvoiceEvents(ctx)

	s.logger.Info("Subscribed to billing.invoice.settled events for automatic income booking")
	return nil
}

// ensureStream ensures the BILLING_EVENTS stream exists
func (s *Subscriber) ensureStream(ctx context.Context) error {
	_, err := s.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      billingStreamName,
		Subjects:  []string{"billing.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour * 7, // 7 days
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	return err
}

// consumeInvoiceEvents pulls settlement events off the durable consumer
func (s *Subscriber) consumeInvoiceEvents(ctx context.Context) {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, billingStreamName, jetstream.ConsumerConfig{
		Durable:       s.consumerName,
		FilterSubject: invoiceSettledSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    3,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to create invoice events consumer")
		return
	}

	msgs, err := consumer.Messages()
	if err != nil {
		s.logger.WithError(err).Error("Failed to get invoice messages iterator")
		return
	}

	for {
		select {
		case <-ctx.Done():
			msgs.Stop()
			return
		default:
			msg, err := msgs.Next()
			if err != nil {
				if err == context.Canceled {
					return
				}
				s.logger.WithError(err).Error("Error getting next invoice message")
				time.Sleep(time.Second)
				continue
			}

			if err := s.handleInvoiceSettled(ctx, msg); err != nil {
				s.logger.WithError(err).Error("Failed to handle invoice settled event")
				msg.Nak()
			} else {
				msg.Ack()
			}
		}
	}
}

// handleInvoiceSettled books one settled invoice as a ledger income row
func (s *Subscriber) handleInvoiceSettled(ctx context.Context, msg jetstream.Msg) error {
	var event InvoiceSettledEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		return fmt.Errorf("failed to unmarshal invoice settled event: %w", err)
	}

	if !event.Amount.IsPositive() {
		return fmt.Errorf("invoice %s has non-positive amount %s", event.InvoiceID, event.Amount)
	}
	if event.WHTWithheld.IsNegative() {
		return fmt.Errorf("invoice %s has negative withholding %s", event.InvoiceID, event.WHTWithheld)
	}

	sessionID := event.SessionID
	if sessionID == "" {
		sessionID = repository.DefaultSessionID
	}
	category := event.Category
	if category == "" {
		category = defaultInvoiceCategory
	}
	recordDate := event.SettledAt
	if recordDate.IsZero() {
		recordDate = time.Now().UTC()
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"invoice_id": event.InvoiceID,
		"amount":     event.Amount,
		"client":     event.ClientName,
	}).Info("Received invoice settled event, booking income")

	recordCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	record := &models.IncomeRecord{
		SessionID:  sessionID,
		RecordDate: recordDate,
		Category:   category,
		Amount:     event.Amount.Round(2),
		Client:     event.ClientName,
		WHTAmount:  event.WHTWithheld.Round(2),
		Source:     models.RecordSourceInvoiceEvent,
	}
	if err := s.repo.CreateIncomeRecord(recordCtx, record); err != nil {
		return fmt.Errorf("failed to book income from invoice: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"record_id":  record.ID,
	}).Info("Booked settled invoice into ledger")
	return nil
}

// Close closes the subscriber connection
func (s *Subscriber) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}
