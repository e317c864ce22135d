package model

import (
	"errors"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusBought  OrderStatus = "bought"
	OrderStatusSold    OrderStatus = "sold"
)

var (
	ErrInvalidPercent   = errors.New("trigger percents must be positive")
	ErrInvalidReference = errors.New("reference price must be positive")
	ErrInvalidNotional  = errors.New("order notional must be positive")
)

// Order is one automated trading position. Trigger prices are derived
// once at creation from the reference price and never recomputed; edits
// go through explicit updates outside the engine.
type Order struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	AccountID      uint            `gorm:"not null" json:"account_id"`
	Symbol         string          `gorm:"not null" json:"symbol"`
	ReferencePrice float64         `gorm:"not null" json:"reference_price"`
	BuyPct         float64         `gorm:"not null" json:"buy_pct"`
	SellPct        float64         `gorm:"not null" json:"sell_pct"`
	StopPct        *float64        `json:"stop_pct"`
	BuyPrice       float64         `gorm:"not null" json:"buy_price"`
	SellPrice      float64         `gorm:"not null" json:"sell_price"`
	StopPrice      *float64        `json:"stop_price"`
	Notional       float64         `gorm:"not null" json:"notional"`
	IsActive       *bool           `gorm:"not null" json:"is_active"`
	Status         OrderStatus     `gorm:"type:varchar(20);not null" json:"status"`
	Account        ExchangeAccount `gorm:"foreignKey:AccountID;references:ID" json:"-"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "auto_orders"
}

func (o *Order) Active() bool {
	return o.IsActive != nil && *o.IsActive
}

// NewOrder builds an order with its derived trigger prices:
//
//	buy_price  = reference × (1 − buy_pct/100)
//	sell_price = buy_price × (1 + sell_pct/100)
//	stop_price = buy_price × (1 − stop_pct/100), when stop_pct is set
//
// which keeps stop_price < buy_price < sell_price for positive percents.
func NewOrder(accountID uint, symbol string, referencePrice, buyPct, sellPct float64, stopPct *float64, notional float64) (*Order, error) {
	if referencePrice <= 0 {
		return nil, ErrInvalidReference
	}
	if buyPct <= 0 || sellPct <= 0 || (stopPct != nil && *stopPct <= 0) {
		return nil, ErrInvalidPercent
	}
	if notional <= 0 {
		return nil, ErrInvalidNotional
	}

	active := true
	buyPrice := referencePrice * (1 - buyPct/100)
	order := &Order{
		AccountID:      accountID,
		Symbol:         symbol,
		ReferencePrice: referencePrice,
		BuyPct:         buyPct,
		SellPct:        sellPct,
		StopPct:        stopPct,
		BuyPrice:       buyPrice,
		SellPrice:      buyPrice * (1 + sellPct/100),
		Notional:       notional,
		IsActive:       &active,
		Status:         OrderStatusPending,
	}
	if stopPct != nil {
		stopPrice := buyPrice * (1 - *stopPct/100)
		order.StopPrice = &stopPrice
	}
	return order, nil
}
