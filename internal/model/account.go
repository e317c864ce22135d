package model

import "time"

type AccountStatus string

const (
	AccountStatusOnline  AccountStatus = "online"
	AccountStatusOffline AccountStatus = "offline"
)

// ExchangeAccount holds the signing material for one linked exchange
// account. Key and secret must never appear in logs.
type ExchangeAccount struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	UserID    uint          `gorm:"not null" json:"user_id"`
	Name      string        `gorm:"not null" json:"name"`
	Exchange  string        `gorm:"not null" json:"exchange"`
	APIKey    string        `gorm:"column:api_key;not null" json:"-"`
	APISecret string        `gorm:"column:api_secret;not null" json:"-"`
	Status    AccountStatus `gorm:"type:varchar(20);not null;default:offline" json:"status"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ExchangeAccount) TableName() string {
	return "exchange_accounts"
}
