package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taxready-service/internal/models"
	"taxready-service/internal/repository"
)

// MockLedgerRepository is a mock implementation of LedgerRepositoryInterface
type MockLedgerRepository struct {
	mock.Mock
}

// Ensure MockLedgerRepository implements the interface
var _ repository.LedgerRepositoryInterface = (*MockLedgerRepository)(nil)

func (m *MockLedgerRepository) CreateIncomeRecord(ctx context.Context, record *models.IncomeRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockLedgerRepository) ListIncomeRecords(ctx context.Context, sessionID string) ([]models.IncomeRecord, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.IncomeRecord), args.Error(1)
}

func (m *MockLedgerRepository) DeleteIncomeRecord(ctx context.Context, sessionID string, recordID uuid.UUID) error {
	args := m.Called(ctx, sessionID, recordID)
	return args.Error(0)
}

func (m *MockLedgerRepository) CreateExpenseRecord(ctx context.Context, record *models.ExpenseRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockLedgerRepository) ListExpenseRecords(ctx context.Context, sessionID string) ([]models.ExpenseRecord, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExpenseRecord), args.Error(1)
}

func (m *MockLedgerRepository) DeleteExpenseRecord(ctx context.Context, sessionID string, recordID uuid.UUID) error {
	args := m.Called(ctx, sessionID, recordID)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetLedgerSummary(ctx context.Context, sessionID string) (*models.LedgerSummary, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerSummary), args.Error(1)
}

func (m *MockLedgerRepository) GetExpenseTotalsByCategory(ctx context.Context, sessionID string) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) GetCachedCalculation(ctx context.Context, cacheKey string) (string, error) {
	args := m.Called(ctx, cacheKey)
	return args.String(0), args.Error(1)
}

func (m *MockLedgerRepository) CacheCalculation(ctx context.Context, cacheKey string, resultJSON string, ttl time.Duration) error {
	args := m.Called(ctx, cacheKey, resultJSON, ttl)
	return args.Error(0)
}

// fakeMsg satisfies the one jetstream.Msg method the handler reads
type fakeMsg struct {
	jetstream.Msg
	data []byte
}

func (m fakeMsg) Data() []byte { return m.data }

func newTestSubscriber(mockRepo *MockLedgerRepository) *Subscriber {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Subscriber{
		repo:   mockRepo,
		logger: logger.WithField("component", "events.subscriber"),
	}
}

func settledEventPayload(t *testing.T, event InvoiceSettledEvent) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

// ===========================================
// Invoice Settled Handler Tests
// ===========================================

func TestHandleInvoiceSettled_BooksIncome(t *testing.T) {
	mockRepo := new(MockLedgerRepository)
	subscriber := newTestSubscriber(mockRepo)

	var created *models.IncomeRecord
	mockRepo.On("CreateIncomeRecord", mock.Anything, mock.AnythingOfType("*models.IncomeRecord")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*models.IncomeRecord) }).
		Return(nil)

	settledAt := time.Date(2026, 4, 10, 14, 30, 0, 0, time.UTC)
	payload := settledEventPayload(t, InvoiceSettledEvent{
		EventType:   "invoice.settled",
		SessionID:   "freelancer-42",
		InvoiceID:   "INV-2026-0042",
		ClientName:  "Acme Ltd",
		Category:    "Consulting Fees",
		Amount:      decimal.RequireFromString("850000.005"),
		WHTWithheld: decimal.NewFromInt(42_500),
		SettledAt:   settledAt,
	})

	err := subscriber.handleInvoiceSettled(context.Background(), fakeMsg{data: payload})
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, "freelancer-42", created.SessionID)
	assert.Equal(t, "Consulting Fees", created.Category)
	assert.Equal(t, "Acme Ltd", created.Client)
	assert.Equal(t, settledAt, created.RecordDate)
	assert.Equal(t, models.RecordSourceInvoiceEvent, created.Source)
	assert.True(t, created.Amount.Equal(decimal.RequireFromString("850000.01")),
		"amount should be stored at 2dp, got %s", created.Amount)
	assert.True(t, created.WHTAmount.Equal(decimal.NewFromInt(42_500)))
	mockRepo.AssertExpectations(t)
}

func TestHandleInvoiceSettled_DefaultsApplied(t *testing.T) {
	mockRepo := new(MockLedgerRepository)
	subscriber := newTestSubscriber(mockRepo)

	var created *models.IncomeRecord
	mockRepo.On("CreateIncomeRecord", mock.Anything, mock.AnythingOfType("*models.IncomeRecord")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*models.IncomeRecord) }).
		Return(nil)

	// No session, category or settlement date on the event
	payload := settledEventPayload(t, InvoiceSettledEvent{
		InvoiceID: "INV-2026-0099",
		Amount:    decimal.NewFromInt(100_000),
	})

	err := subscriber.handleInvoiceSettled(context.Background(), fakeMsg{data: payload})
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, repository.DefaultSessionID, created.SessionID)
	assert.Equal(t, "Contract Payments", created.Category)
	assert.False(t, created.RecordDate.IsZero())
}

func TestHandleInvoiceSettled_RejectsNonPositiveAmount(t *testing.T) {
	mockRepo := new(MockLedgerRepository)
	subscriber := newTestSubscriber(mockRepo)

	payload := settledEventPayload(t, InvoiceSettledEvent{
		InvoiceID: "INV-2026-0001",
		Amount:    decimal.Zero,
	})

	err := subscriber.handleInvoiceSettled(context.Background(), fakeMsg{data: payload})

	assert.Error(t, err)
	mockRepo.AssertNotCalled(t, "CreateIncomeRecord", mock.Anything, mock.Anything)
}

func TestHandleInvoiceSettled_RejectsNegativeWithholding(t *testing.T) {
	mockRepo := new(MockLedgerRepository)
	subscriber := newTestSubscriber(mockRepo)

	payload := settledEventPayload(t, InvoiceSettledEvent{
		InvoiceID:   "INV-2026-0002",
		Amount:      decimal.NewFromInt(100_000),
		WHTWithheld: decimal.NewFromInt(-1),
	})

	err := subscriber.handleInvoiceSettled(context.Background(), fakeMsg{data: payload})

	assert.Error(t, err)
	mockRepo.AssertNotCalled(t, "CreateIncomeRecord", mock.Anything, mock.Anything)
}

func TestHandleInvoiceSettled_MalformedPayload(t *testing.T) {
	mockRepo := new(MockLedgerRepository)
	subscriber := newTestSubscriber(mockRepo)

	err := subscriber.handleInvoiceSettled(context.Background(), fakeMsg{data: []byte("not json")})

	assert.Error(t, err)
	mockRepo.AssertNotCalled(t, "CreateIncomeRecord", mock.Anything, mock.Anything)
}

func TestHandleInvoiceSettled_RepositoryFailure(t *testing.T) {
	mockRepo := new(MockLedgerRepository)
	subscriber := newTestSubscriber(mockRepo)

	mockRepo.On("CreateIncomeRecord", mock.Anything, mock.AnythingOfType("*models.IncomeRecord")).
		Return(errors.New("database unavailable"))

	payload := settledEventPayload(t, InvoiceSettledEvent{
		InvoiceID: "INV-2026-0003",
		Amount:    decimal.NewFromInt(100_000),
	})

	err := subscriber.handleInvoiceSettled(context.Background(), fakeMsg{data: payload})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to book income")
}
