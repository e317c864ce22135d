package engine

import (
	"context"
	"math"
	"testing"

	"cryptofolio/internal/exchange"
	"cryptofolio/internal/model"
	"cryptofolio/internal/repository"
	"cryptofolio/pkg/logger"
	"cryptofolio/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// mockExchangeClient is a mock implementation of exchange.Client.
type mockExchangeClient struct {
	mock.Mock
}

func (m *mockExchangeClient) Name() string {
	return "mock"
}

func (m *mockExchangeClient) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockExchangeClient) Change24h(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockExchangeClient) AccountStatus(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockExchangeClient) AssetBalance(ctx context.Context, asset string) (float64, error) {
	args := m.Called(asset)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockExchangeClient) SubmitMarketOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	args := m.Called(req)
	result, _ := args.Get(0).(*exchange.OrderResult)
	return result, args.Error(1)
}

// stubFactory hands every account the same client.
type stubFactory struct {
	client exchange.Client
	err    error
}

func (f stubFactory) ClientFor(name string, creds exchange.Credentials) (exchange.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

// setupOrderTest builds an isolated in-memory database with one linked
// account, plus a mock exchange client wired through a stub factory.
func setupOrderTest(t *testing.T) (*gorm.DB, *repository.Repository, *mockExchangeClient, *OrderEngine) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)

	err = db.AutoMigrate(&model.ExchangeAccount{}, &model.Order{}, &model.OrderExecution{})
	assert.NoError(t, err)

	db.Create(&model.ExchangeAccount{
		UserID:    1,
		Name:      "main",
		Exchange:  "binance",
		APIKey:    "key",
		APISecret: "secret",
		Status:    model.AccountStatusOnline,
	})

	repos := repository.NewRepository(db)
	client := new(mockExchangeClient)
	eng := NewOrderEngine(logger.NewNop(), repos.OrderRepo, repos.OrderExecutionRepo, stubFactory{client: client})

	return db, repos, client, eng
}

func createTestOrder(t *testing.T, db *gorm.DB, status model.OrderStatus) *model.Order {
	order, err := model.NewOrder(1, "BTC/USDT", 100, 5, 10, utils.ToPointer(5.0), 50)
	assert.NoError(t, err)
	order.Status = status
	assert.NoError(t, db.Create(order).Error)
	return order
}

func TestOrderEngine_BuyAdvancesOrder(t *testing.T) {
	db, repos, client, eng := setupOrderTest(t)
	order := createTestOrder(t, db, model.OrderStatusPending)

	client.On("SpotPrice", "BTC/USDT").Return(94.0, nil)
	client.On("SubmitMarketOrder", exchange.OrderRequest{
		Symbol:   "BTC/USDT",
		Side:     exchange.SideBuy,
		Notional: 50,
	}).Return(&exchange.OrderResult{ExchangeOrderID: "42", Raw: []byte(`{"orderId":42,"status":"FILLED"}`)}, nil)

	assert.NoError(t, eng.Run(context.Background()))
	client.AssertExpectations(t)

	var got model.Order
	assert.NoError(t, db.First(&got, order.ID).Error)
	assert.Equal(t, model.OrderStatusBought, got.Status)
	assert.True(t, got.Active())

	executions, err := repos.OrderExecutionRepo.GetByOrderID(context.Background(), order.ID)
	assert.NoError(t, err)
	assert.Len(t, executions, 1)
	assert.Equal(t, exchange.SideBuy, executions[0].Side)
	assert.Equal(t, model.ExecutionStatusSubmitted, executions[0].Status)
	assert.Equal(t, "42", executions[0].ExchangeOrderID)
}

func TestOrderEngine_BuyHoldsAbovePrice(t *testing.T) {
	db, _, client, eng := setupOrderTest(t)
	order := createTestOrder(t, db, model.OrderStatusPending)

	client.On("SpotPrice", "BTC/USDT").Return(96.0, nil)

	assert.NoError(t, eng.Run(context.Background()))
	client.AssertExpectations(t)
	client.AssertNotCalled(t, "SubmitMarketOrder", mock.Anything)

	var got model.Order
	assert.NoError(t, db.First(&got, order.ID).Error)
	assert.Equal(t, model.OrderStatusPending, got.Status)
}

// A rejected submission must leave the order untouched so the next tick
// retries it, and the rejection must land in the audit trail.
func TestOrderEngine_SubmitFailureRetriesNextTick(t *testing.T) {
	db, repos, client, eng := setupOrderTest(t)
	order := createTestOrder(t, db, model.OrderStatusPending)

	apiErr := &exchange.APIError{Exchange: "binance", StatusCode: 500, Body: []byte(`{"code":-1001}`)}
	client.On("SpotPrice", "BTC/USDT").Return(94.0, nil)
	client.On("SubmitMarketOrder", mock.Anything).Return(&exchange.OrderResult{Raw: []byte(`{"code":-1001}`)}, apiErr)

	assert.NoError(t, eng.Run(context.Background()))
	client.AssertExpectations(t)

	var got model.Order
	assert.NoError(t, db.First(&got, order.ID).Error)
	assert.Equal(t, model.OrderStatusPending, got.Status)
	assert.True(t, got.Active())

	executions, err := repos.OrderExecutionRepo.GetByOrderID(context.Background(), order.ID)
	assert.NoError(t, err)
	assert.Len(t, executions, 1)
	assert.Equal(t, model.ExecutionStatusFailed, executions[0].Status)
}

func TestOrderEngine_StopSellClosesOrder(t *testing.T) {
	db, _, client, eng := setupOrderTest(t)
	order := createTestOrder(t, db, model.OrderStatusBought)

	// Balance below the notional's worth, so quantity is the balance.
	client.On("SpotPrice", "BTC/USDT").Return(89.0, nil)
	client.On("AssetBalance", "BTC").Return(0.004, nil)
	client.On("SubmitMarketOrder", exchange.OrderRequest{
		Symbol:   "BTC/USDT",
		Side:     exchange.SideSell,
		Quantity: 0.004,
	}).Return(&exchange.OrderResult{ExchangeOrderID: "77", Raw: []byte(`{"orderId":77}`)}, nil)

	assert.NoError(t, eng.Run(context.Background()))
	client.AssertExpectations(t)

	var got model.Order
	assert.NoError(t, db.First(&got, order.ID).Error)
	assert.Equal(t, model.OrderStatusSold, got.Status)
	assert.False(t, got.Active())
}

func TestOrderEngine_SellQuantityCappedByNotional(t *testing.T) {
	db, _, client, eng := setupOrderTest(t)
	createTestOrder(t, db, model.OrderStatusBought)

	price := 120.0
	wantQuantity := math.Floor(math.Min(1.0, 50.0/price)*1e8) / 1e8

	client.On("SpotPrice", "BTC/USDT").Return(price, nil)
	client.On("AssetBalance", "BTC").Return(1.0, nil)
	client.On("SubmitMarketOrder", exchange.OrderRequest{
		Symbol:   "BTC/USDT",
		Side:     exchange.SideSell,
		Quantity: wantQuantity,
	}).Return(&exchange.OrderResult{ExchangeOrderID: "78", Raw: []byte(`{}`)}, nil)

	assert.NoError(t, eng.Run(context.Background()))
	client.AssertExpectations(t)
}

func TestOrderEngine_ZeroBalanceSkipsSell(t *testing.T) {
	db, _, client, eng := setupOrderTest(t)
	order := createTestOrder(t, db, model.OrderStatusBought)

	client.On("SpotPrice", "BTC/USDT").Return(50.0, nil)
	client.On("AssetBalance", "BTC").Return(0.0, nil)

	assert.NoError(t, eng.Run(context.Background()))
	client.AssertExpectations(t)
	client.AssertNotCalled(t, "SubmitMarketOrder", mock.Anything)

	var got model.Order
	assert.NoError(t, db.First(&got, order.ID).Error)
	assert.Equal(t, model.OrderStatusBought, got.Status)
}

func TestOrderEngine_PriceUnavailableSkipsRecord(t *testing.T) {
	db, _, client, eng := setupOrderTest(t)
	order := createTestOrder(t, db, model.OrderStatusPending)

	client.On("SpotPrice", "BTC/USDT").Return(0.0, assert.AnError)

	assert.NoError(t, eng.Run(context.Background()))
	client.AssertExpectations(t)
	client.AssertNotCalled(t, "SubmitMarketOrder", mock.Anything)

	var got model.Order
	assert.NoError(t, db.First(&got, order.ID).Error)
	assert.Equal(t, model.OrderStatusPending, got.Status)
}

func TestOrderEngine_UnusableAccountSkipsRecord(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.ExchangeAccount{}, &model.Order{}, &model.OrderExecution{}))

	db.Create(&model.ExchangeAccount{UserID: 1, Name: "main", Exchange: "unknown", APIKey: "k", APISecret: "s"})
	createTestOrder(t, db, model.OrderStatusPending)

	repos := repository.NewRepository(db)
	eng := NewOrderEngine(logger.NewNop(), repos.OrderRepo, repos.OrderExecutionRepo, stubFactory{err: assert.AnError})

	assert.NoError(t, eng.Run(context.Background()))
}

// failingStatusOrderRepo reads fine but cannot persist transitions.
type failingStatusOrderRepo struct {
	repository.OrderRepository
}

func (failingStatusOrderRepo) SetStatus(ctx context.Context, orderID uint, status model.OrderStatus, active bool) error {
	return assert.AnError
}

// A failed status write must abort the remainder of the tick: the
// second eligible order is never touched, and Run surfaces the error.
func TestOrderEngine_PersistenceFailureAbortsTick(t *testing.T) {
	db, repos, client, _ := setupOrderTest(t)
	createTestOrder(t, db, model.OrderStatusPending)

	second, err := model.NewOrder(1, "ETH/USDT", 100, 5, 10, nil, 50)
	require.NoError(t, err)
	require.NoError(t, db.Create(second).Error)

	eng := NewOrderEngine(logger.NewNop(),
		failingStatusOrderRepo{repos.OrderRepo}, repos.OrderExecutionRepo, stubFactory{client: client})

	client.On("SpotPrice", "BTC/USDT").Return(94.0, nil)
	client.On("SubmitMarketOrder", mock.Anything).
		Return(&exchange.OrderResult{ExchangeOrderID: "42", Raw: []byte(`{}`)}, nil)

	assert.Error(t, eng.Run(context.Background()))

	client.AssertNumberOfCalls(t, "SpotPrice", 1)
	client.AssertNumberOfCalls(t, "SubmitMarketOrder", 1)
	client.AssertNotCalled(t, "SpotPrice", "ETH/USDT")
}

// Re-running a tick against unchanged state must not act twice: the
// first tick advances the order, the second finds nothing to do at the
// same price.
func TestOrderEngine_TickIsIdempotent(t *testing.T) {
	db, _, client, eng := setupOrderTest(t)
	createTestOrder(t, db, model.OrderStatusPending)

	client.On("SpotPrice", "BTC/USDT").Return(94.0, nil)
	client.On("SubmitMarketOrder", mock.Anything).
		Return(&exchange.OrderResult{ExchangeOrderID: "42", Raw: []byte(`{}`)}, nil).Once()

	assert.NoError(t, eng.Run(context.Background()))
	// Now bought; 94 sits between stop (91.2) and sell (104.5).
	assert.NoError(t, eng.Run(context.Background()))

	client.AssertNumberOfCalls(t, "SubmitMarketOrder", 1)
}

func TestOrderEngine_SoldOrdersAreNotLoaded(t *testing.T) {
	db, _, client, eng := setupOrderTest(t)

	order := createTestOrder(t, db, model.OrderStatusSold)
	db.Model(order).Update("is_active", false)

	assert.NoError(t, eng.Run(context.Background()))
	client.AssertNotCalled(t, "SpotPrice", mock.Anything)
}
