package engine

import "cryptofolio/internal/model"

type OrderAction int

const (
	OrderActionNone OrderAction = iota
	OrderActionBuy
	OrderActionStopSell
	OrderActionProfitSell
)

func (a OrderAction) String() string {
	switch a {
	case OrderActionBuy:
		return "buy"
	case OrderActionStopSell:
		return "stop_sell"
	case OrderActionProfitSell:
		return "profit_sell"
	default:
		return "none"
	}
}

// EvaluateOrder decides the state transition for one order at the given
// spot price. Pure decision logic, no I/O.
//
// The stop-loss check runs before take-profit: when a single price
// satisfies both, capital protection wins.
func EvaluateOrder(order model.Order, price float64) OrderAction {
	if !order.Active() {
		return OrderActionNone
	}

	switch order.Status {
	case model.OrderStatusPending:
		if price <= order.BuyPrice {
			return OrderActionBuy
		}
	case model.OrderStatusBought:
		if order.StopPrice != nil && price <= *order.StopPrice {
			return OrderActionStopSell
		}
		if price >= order.SellPrice {
			return OrderActionProfitSell
		}
	}
	return OrderActionNone
}

type AlertAction int

const (
	AlertActionNone AlertAction = iota
	AlertActionRise
	AlertActionFall
)

func (a AlertAction) String() string {
	switch a {
	case AlertActionRise:
		return "rise"
	case AlertActionFall:
		return "fall"
	default:
		return "none"
	}
}

// EvaluateAlert decides whether an alert fires for the given 24-hour
// percent change. Rise is checked first, then fall against the negated
// threshold. Inactive alerts never fire.
func EvaluateAlert(alert model.Alert, changePct float64) AlertAction {
	if !alert.Active() {
		return AlertActionNone
	}

	if alert.RisePct != nil && changePct >= *alert.RisePct {
		return AlertActionRise
	}
	if alert.FallPct != nil && changePct <= -*alert.FallPct {
		return AlertActionFall
	}
	return AlertActionNone
}
