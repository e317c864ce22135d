package repository

import (
	"context"

	"cryptofolio/internal/model"
	"cryptofolio/pkg/utils"

	"gorm.io/gorm"
)

type OrderExecutionRepository interface {
	Create(ctx context.Context, execution *model.OrderExecution, opts ...utils.DBOption) error
	GetByOrderID(ctx context.Context, orderID uint) ([]model.OrderExecution, error)
}

type orderExecutionRepository struct {
	db *gorm.DB
}

func NewOrderExecutionRepository(db *gorm.DB) OrderExecutionRepository {
	return &orderExecutionRepository{db: db}
}

func (r *orderExecutionRepository) Create(ctx context.Context, execution *model.OrderExecution, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(execution).Error
}

func (r *orderExecutionRepository) GetByOrderID(ctx context.Context, orderID uint) ([]model.OrderExecution, error) {
	var executions []model.OrderExecution
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id DESC").Find(&executions).Error; err != nil {
		return nil, err
	}
	return executions, nil
}
