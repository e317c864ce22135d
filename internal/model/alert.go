package model

import (
	"errors"
	"time"
)

var ErrNoThreshold = errors.New("alert needs a rise or fall threshold")

// Alert is a one-shot price-watch rule. The engine only ever flips it
// inactive and stamps the notification time; re-arming is a user action.
type Alert struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null" json:"user_id"`
	Symbol         string     `gorm:"not null" json:"symbol"`
	ReferencePrice float64    `gorm:"not null" json:"reference_price"`
	RisePct        *float64   `json:"rise_pct"`
	FallPct        *float64   `json:"fall_pct"`
	IsActive       *bool      `gorm:"not null" json:"is_active"`
	LastNotifiedAt *time.Time `json:"last_notified_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Alert) TableName() string {
	return "price_alerts"
}

func (a *Alert) Active() bool {
	return a.IsActive != nil && *a.IsActive
}

func NewAlert(userID uint, symbol string, referencePrice float64, risePct, fallPct *float64) (*Alert, error) {
	if risePct == nil && fallPct == nil {
		return nil, ErrNoThreshold
	}
	if referencePrice <= 0 {
		return nil, ErrInvalidReference
	}

	active := true
	return &Alert{
		UserID:         userID,
		Symbol:         symbol,
		ReferencePrice: referencePrice,
		RisePct:        risePct,
		FallPct:        fallPct,
		IsActive:       &active,
	}, nil
}
