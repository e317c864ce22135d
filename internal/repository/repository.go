package repository

import (
	"gorm.io/gorm"
)

type Repository struct {
	OrderRepo          OrderRepository
	AlertRepo          AlertRepository
	AccountRepo        AccountRepository
	UserSettingRepo    UserSettingRepository
	OrderExecutionRepo OrderExecutionRepository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		OrderRepo:          NewOrderRepository(db),
		AlertRepo:          NewAlertRepository(db),
		AccountRepo:        NewAccountRepository(db),
		UserSettingRepo:    NewUserSettingRepository(db),
		OrderExecutionRepo: NewOrderExecutionRepository(db),
	}
}
