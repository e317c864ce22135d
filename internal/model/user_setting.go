package model

import "time"

// UserSetting carries the per-user notification channel. Alerts are
// delivered with the user's own bot token and chat.
type UserSetting struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	TelegramBotToken string    `gorm:"column:telegram_bot_token" json:"-"`
	TelegramChatID   int64     `gorm:"column:telegram_chat_id" json:"telegram_chat_id"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserSetting) TableName() string {
	return "user_settings"
}
