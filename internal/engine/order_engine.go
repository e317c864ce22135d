package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"cryptofolio/internal/exchange"
	"cryptofolio/internal/model"
	"cryptofolio/internal/repository"
	"cryptofolio/pkg/logger"
	"cryptofolio/pkg/utils"
)

// OrderEngine drives the order state machine: one tick loads every
// active order, fetches the live price on the order's exchange,
// evaluates the trigger conditions and submits market orders for the
// transitions that fire. State is persisted only after a successful
// submission, so a failed submission is retried naturally next tick.
type OrderEngine struct {
	log        *logger.Logger
	orders     repository.OrderRepository
	executions repository.OrderExecutionRepository
	exchanges  exchange.Factory
}

func NewOrderEngine(
	log *logger.Logger,
	orders repository.OrderRepository,
	executions repository.OrderExecutionRepository,
	exchanges exchange.Factory,
) *OrderEngine {
	return &OrderEngine{
		log:        log,
		orders:     orders,
		executions: executions,
		exchanges:  exchanges,
	}
}

// Run executes one tick. Per-record failures (price unavailable,
// submission rejected) skip that record only; a persistence failure
// aborts the remainder of the tick, since consistency outranks
// completeness of a single pass.
func (e *OrderEngine) Run(ctx context.Context) error {
	orders, err := e.orders.Get(ctx, repository.GetOrdersParam{IsActive: utils.ToPointer(true)})
	if err != nil {
		return fmt.Errorf("failed to load active orders: %w", err)
	}
	if len(orders) == 0 {
		e.log.DebugContext(ctx, "No active orders")
		return nil
	}

	// One client per account for the duration of the tick; nothing is
	// cached across ticks.
	clients := make(map[uint]exchange.Client)

	for _, order := range orders {
		if !utils.ShouldContinue(ctx, e.log) {
			return nil
		}
		if err := e.process(ctx, clients, order); err != nil {
			return err
		}
	}
	return nil
}

func (e *OrderEngine) process(ctx context.Context, clients map[uint]exchange.Client, order model.Order) error {
	client, err := e.clientFor(clients, order.Account)
	if err != nil {
		e.log.WarnContext(ctx, "Skipping order on unusable account",
			logger.IntField("order_id", int(order.ID)),
			logger.IntField("account_id", int(order.AccountID)),
			logger.ErrorField(err),
		)
		return nil
	}

	price, err := client.SpotPrice(ctx, order.Symbol)
	if err != nil {
		e.log.WarnContext(ctx, "Price unavailable, skipping order this tick",
			logger.IntField("order_id", int(order.ID)),
			logger.StringField("symbol", order.Symbol),
			logger.ErrorField(err),
		)
		return nil
	}

	switch action := EvaluateOrder(order, price); action {
	case OrderActionBuy:
		e.log.InfoContext(ctx, "Buy condition reached",
			logger.IntField("order_id", int(order.ID)),
			logger.StringField("symbol", order.Symbol),
			logger.Float64Field("price", price),
			logger.Float64Field("buy_price", order.BuyPrice),
		)
		return e.executeBuy(ctx, client, order)
	case OrderActionStopSell, OrderActionProfitSell:
		e.log.InfoContext(ctx, "Sell condition reached",
			logger.IntField("order_id", int(order.ID)),
			logger.StringField("symbol", order.Symbol),
			logger.StringField("action", action.String()),
			logger.Float64Field("price", price),
		)
		return e.executeSell(ctx, client, order, price)
	default:
		return nil
	}
}

func (e *OrderEngine) clientFor(clients map[uint]exchange.Client, account model.ExchangeAccount) (exchange.Client, error) {
	if client, ok := clients[account.ID]; ok {
		return client, nil
	}
	client, err := e.exchanges.ClientFor(account.Exchange, exchange.Credentials{
		APIKey:    account.APIKey,
		APISecret: account.APISecret,
	})
	if err != nil {
		return nil, err
	}
	clients[account.ID] = client
	return client, nil
}

// executeBuy submits a BUY sized by the order's notional. On success the
// order advances pending → bought and stays active for the sell leg.
func (e *OrderEngine) executeBuy(ctx context.Context, client exchange.Client, order model.Order) error {
	req := exchange.OrderRequest{
		Symbol:   order.Symbol,
		Side:     exchange.SideBuy,
		Notional: order.Notional,
	}

	result, err := client.SubmitMarketOrder(ctx, req)
	e.recordExecution(ctx, order, req, result, err)
	if err != nil {
		e.logSubmitFailure(ctx, order, err)
		return nil
	}

	if err := e.orders.SetStatus(ctx, order.ID, model.OrderStatusBought, true); err != nil {
		return fmt.Errorf("failed to persist buy transition for order %d: %w", order.ID, err)
	}
	e.log.InfoContext(ctx, "Order bought",
		logger.IntField("order_id", int(order.ID)),
		logger.StringField("exchange_order_id", result.ExchangeOrderID),
	)
	return nil
}

// executeSell submits a SELL sized by base-asset quantity. Market sells
// cannot be sized by notional on most venues, so the quantity is
// resolved from a balance lookup first: the notional's worth of the
// asset at the current price, capped at the free balance.
func (e *OrderEngine) executeSell(ctx context.Context, client exchange.Client, order model.Order, price float64) error {
	base, _ := utils.SplitSymbol(order.Symbol)
	balance, err := client.AssetBalance(ctx, base)
	if err != nil {
		e.log.WarnContext(ctx, "Balance lookup failed, skipping sell this tick",
			logger.IntField("order_id", int(order.ID)),
			logger.StringField("asset", base),
			logger.ErrorField(err),
		)
		return nil
	}

	quantity := math.Min(balance, order.Notional/price)
	quantity = math.Floor(quantity*1e8) / 1e8
	if quantity <= 0 {
		e.log.WarnContext(ctx, "No sellable balance, skipping sell this tick",
			logger.IntField("order_id", int(order.ID)),
			logger.StringField("asset", base),
		)
		return nil
	}

	req := exchange.OrderRequest{
		Symbol:   order.Symbol,
		Side:     exchange.SideSell,
		Quantity: quantity,
	}

	result, err := client.SubmitMarketOrder(ctx, req)
	e.recordExecution(ctx, order, req, result, err)
	if err != nil {
		e.logSubmitFailure(ctx, order, err)
		return nil
	}

	if err := e.orders.SetStatus(ctx, order.ID, model.OrderStatusSold, false); err != nil {
		return fmt.Errorf("failed to persist sell transition for order %d: %w", order.ID, err)
	}
	e.log.InfoContext(ctx, "Order sold",
		logger.IntField("order_id", int(order.ID)),
		logger.StringField("exchange_order_id", result.ExchangeOrderID),
	)
	return nil
}

// recordExecution writes the audit row for a submission attempt. Audit
// failures are logged, not fatal: the trail must never block trading.
func (e *OrderEngine) recordExecution(ctx context.Context, order model.Order, req exchange.OrderRequest, result *exchange.OrderResult, submitErr error) {
	execution := &model.OrderExecution{
		OrderID:  order.ID,
		Side:     req.Side,
		Symbol:   order.Symbol,
		Notional: req.Notional,
		Quantity: req.Quantity,
		Status:   model.ExecutionStatusSubmitted,
	}
	if submitErr != nil {
		execution.Status = model.ExecutionStatusFailed
	}
	if result != nil {
		execution.ExchangeOrderID = result.ExchangeOrderID
	}
	execution.Response = executionPayload(result, submitErr)

	if err := e.executions.Create(ctx, execution); err != nil {
		e.log.ErrorContext(ctx, "Failed to record order execution",
			logger.IntField("order_id", int(order.ID)),
			logger.ErrorField(err),
		)
	}
}

// executionPayload keeps the raw exchange response when it is valid
// JSON, otherwise wraps the error so the jsonb column stays valid.
func executionPayload(result *exchange.OrderResult, submitErr error) []byte {
	if result != nil && len(result.Raw) > 0 && json.Valid(result.Raw) {
		return result.Raw
	}
	if submitErr != nil {
		payload, _ := json.Marshal(map[string]string{"error": submitErr.Error()})
		return payload
	}
	return []byte("{}")
}

func (e *OrderEngine) logSubmitFailure(ctx context.Context, order model.Order, err error) {
	var apiErr *exchange.APIError
	if errors.As(err, &apiErr) && apiErr.AuthFailure() {
		// Bad signing material will not fix itself; flag it for the operator.
		e.log.ErrorContext(ctx, "Order submission rejected, check account credentials",
			logger.IntField("order_id", int(order.ID)),
			logger.IntField("account_id", int(order.AccountID)),
			logger.ErrorField(err),
		)
		return
	}
	e.log.WarnContext(ctx, "Order submission failed, will retry next tick",
		logger.IntField("order_id", int(order.ID)),
		logger.ErrorField(err),
	)
}
