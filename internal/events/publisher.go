package events

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Subjects for events published by this service. All of them live on the
// TAX_EVENTS stream under tax.>.
const (
	SubjectPayeCalculated       = "tax.calculation.paye"
	SubjectContractorCalculated = "tax.calculation.contractor"
	SubjectIncomeRecorded       = "tax.ledger.income"
	SubjectExpenseRecorded      = "tax.ledger.expense"
)

const taxStreamName = "TAX_EVENTS"

var (
	publisher     *Publisher
	publisherOnce sync.Once
	publisherMu   sync.RWMutex
)

// PayeCalculatedEvent is published after a successful employee calculation
type PayeCalculatedEvent struct {
	EventType     string          `json:"eventType"`
	SessionID     string          `json:"sessionId"`
	GrossAnnual   decimal.Decimal `json:"grossAnnual"`
	TaxableIncome decimal.Decimal `json:"taxableIncome"`
	AnnualTax     decimal.Decimal `json:"annualTax"`
	EffectiveRate decimal.Decimal `json:"effectiveRate"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ContractorCalculatedEvent is published after a successful contractor calculation
type ContractorCalculatedEvent struct {
	EventType     string          `json:"eventType"`
	SessionID     string          `json:"sessionId"`
	GrossRevenue  decimal.Decimal `json:"grossRevenue"`
	TaxableIncome decimal.Decimal `json:"taxableIncome"`
	NetTaxPayable decimal.Decimal `json:"netTaxPayable"`
	Timestamp     time.Time       `json:"timestamp"`
}

// LedgerRecordedEvent is published when a row is booked into a session's ledger
type LedgerRecordedEvent struct {
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	RecordID  string          `json:"recordId"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publisher publishes tax events to JetStream
type Publisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logrus.Entry
}

// InitPublisher initializes the singleton NATS publisher
func InitPublisher(logger *logrus.Logger) error {
	var initErr error
	publisherOnce.Do(func() {
		natsURL := os.Getenv("NATS_URL")
		if natsURL == "" {
			logger.Warn("NATS_URL not set, event publishing disabled")
			return
		}

		conn, err := nats.Connect(natsURL,
			nats.Name("taxready-service"),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			initErr = err
			return
		}

		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			initErr = err
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:      taxStreamName,
			Subjects:  []string{"tax.>"},
			Retention: jetstream.LimitsPolicy,
			MaxAge:    24 * time.Hour * 7, // 7 days
			Storage:   jetstream.FileStorage,
			Replicas:  1,
		}); err != nil {
			logger.WithError(err).Warn("Failed to ensure TAX_EVENTS stream")
		}

		publisherMu.Lock()
		publisher = &Publisher{
			conn:   conn,
			js:     js,
			logger: logger.WithField("component", "events.publisher"),
		}
		publisherMu.Unlock()

		logger.Info("NATS events publisher initialized for taxready-service")
	})
	return initErr
}

// GetPublisher returns the singleton publisher instance
func GetPublisher() *Publisher {
	publisherMu.RLock()
	defer publisherMu.RUnlock()
	return publisher
}

// publish marshals one event and publishes it to its subject
func (p *Publisher) publish(ctx context.Context, subject string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.logger.WithError(err).WithField("subject", subject).Warn("Failed to publish event")
		return err
	}
	return nil
}

// PublishPayeCalculated publishes an employee calculation event
func (p *Publisher) PublishPayeCalculated(ctx context.Context, sessionID string, grossAnnual, taxableIncome, annualTax, effectiveRate decimal.Decimal) error {
	return p.publish(ctx, SubjectPayeCalculated, PayeCalculatedEvent{
		EventType:     SubjectPayeCalculated,
		SessionID:     sessionID,
		GrossAnnual:   grossAnnual,
		TaxableIncome: taxableIncome,
		AnnualTax:     annualTax,
		EffectiveRate: effectiveRate,
		Timestamp:     time.Now().UTC(),
	})
}

// PublishContractorCalculated publishes a contractor calculation event
func (p *Publisher) PublishContractorCalculated(ctx context.Context, sessionID string, grossRevenue, taxableIncome, netTaxPayable decimal.Decimal) error {
	return p.publish(ctx, SubjectContractorCalculated, ContractorCalculatedEvent{
		EventType:     SubjectContractorCalculated,
		SessionID:     sessionID,
		GrossRevenue:  grossRevenue,
		TaxableIncome: taxableIncome,
		NetTaxPayable: netTaxPayable,
		Timestamp:     time.Now().UTC(),
	})
}

// PublishIncomeRecorded publishes a ledger income booked event
func (p *Publisher) PublishIncomeRecorded(ctx context.Context, sessionID, recordID, category, source string, amount decimal.Decimal) error {
	return p.publish(ctx, SubjectIncomeRecorded, LedgerRecordedEvent{
		EventType: SubjectIncomeRecorded,
		SessionID: sessionID,
		RecordID:  recordID,
		Category:  category,
		Amount:    amount,
		Source:    source,
		Timestamp: time.Now().UTC(),
	})
}

// PublishExpenseRecorded publishes a ledger expense booked event
func (p *Publisher) PublishExpenseRecorded(ctx context.Context, sessionID, recordID, category, source string, amount decimal.Decimal) error {
	return p.publish(ctx, SubjectExpenseRecorded, LedgerRecordedEvent{
		EventType: SubjectExpenseRecorded,
		SessionID: sessionID,
		RecordID:  recordID,
		Category:  category,
		Amount:    amount,
		Source:    source,
		Timestamp: time.Now().UTC(),
	})
}

// IsConnected returns true if connected to NATS
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close closes the publisher connection
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
