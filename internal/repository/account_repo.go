package repository

import (
	"context"

	"cryptofolio/internal/model"
	"cryptofolio/pkg/utils"

	"gorm.io/gorm"
)

type GetAccountsParam struct {
	IDs       []uint   `json:"ids"`
	Exchanges []string `json:"exchanges"`
}

type AccountRepository interface {
	Get(ctx context.Context, param GetAccountsParam, opts ...utils.DBOption) ([]model.ExchangeAccount, error)
	SetStatus(ctx context.Context, accountID uint, status model.AccountStatus) error
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Get(ctx context.Context, param GetAccountsParam, opts ...utils.DBOption) ([]model.ExchangeAccount, error) {
	var accounts []model.ExchangeAccount

	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if len(param.IDs) > 0 {
		db = db.Where("id IN (?)", param.IDs)
	}
	if len(param.Exchanges) > 0 {
		db = db.Where("exchange IN (?)", param.Exchanges)
	}

	if err := db.Order("id ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) SetStatus(ctx context.Context, accountID uint, status model.AccountStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.ExchangeAccount{}).
		Where("id = ?", accountID).
		Update("status", status).Error
}
