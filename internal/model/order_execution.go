package model

import (
	"time"

	"gorm.io/datatypes"
)

type ExecutionStatus string

const (
	ExecutionStatusSubmitted ExecutionStatus = "submitted"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// OrderExecution is the audit row for one submission attempt. The raw
// exchange response (or error payload) is kept verbatim for operators.
type OrderExecution struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderID         uint            `gorm:"not null" json:"order_id"`
	Side            string          `gorm:"type:varchar(10);not null" json:"side"`
	Symbol          string          `gorm:"not null" json:"symbol"`
	Notional        float64         `json:"notional"`
	Quantity        float64         `json:"quantity"`
	Status          ExecutionStatus `gorm:"type:varchar(20);not null" json:"status"`
	ExchangeOrderID string          `json:"exchange_order_id"`
	Response        datatypes.JSON  `gorm:"type:jsonb" json:"response"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (OrderExecution) TableName() string {
	return "order_executions"
}
