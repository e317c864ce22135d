package repository

import (
	"context"
	"fmt"
	"strings"

	"cryptofolio/internal/model"
	"cryptofolio/pkg/utils"

	"gorm.io/gorm"
)

type GetOrdersParam struct {
	IDs        []uint              `json:"ids"`
	AccountIDs []uint              `json:"account_ids"`
	Statuses   []model.OrderStatus `json:"statuses"`
	IsActive   *bool               `json:"is_active"`
}

type OrderRepository interface {
	Get(ctx context.Context, param GetOrdersParam, opts ...utils.DBOption) ([]model.Order, error)
	Create(ctx context.Context, order *model.Order, opts ...utils.DBOption) error
	SetStatus(ctx context.Context, orderID uint, status model.OrderStatus, active bool) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Get(ctx context.Context, param GetOrdersParam, opts ...utils.DBOption) ([]model.Order, error) {
	var orders []model.Order

	qFilter := []string{}
	qFilterParam := []interface{}{}

	if len(param.IDs) > 0 {
		qFilter = append(qFilter, "id IN (?)")
		qFilterParam = append(qFilterParam, param.IDs)
	}

	if len(param.AccountIDs) > 0 {
		qFilter = append(qFilter, "account_id IN (?)")
		qFilterParam = append(qFilterParam, param.AccountIDs)
	}

	if len(param.Statuses) > 0 {
		qFilter = append(qFilter, "status IN (?)")
		qFilterParam = append(qFilterParam, param.Statuses)
	}

	if param.IsActive != nil {
		qFilter = append(qFilter, "is_active = ?")
		qFilterParam = append(qFilterParam, *param.IsActive)
	}

	if len(qFilter) == 0 {
		return nil, fmt.Errorf("no filter provided")
	}

	// The engine always needs the owning account for signing material.
	opts = append([]utils.DBOption{utils.WithPreload("Account")}, opts...)

	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := db.Where(strings.Join(qFilter, " AND "), qFilterParam...).Order("id ASC").Find(&orders).Error; err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(order).Error
}

// SetStatus persists the engine's state transition as a targeted field
// update; the pricing columns stay untouched.
func (r *orderRepository) SetStatus(ctx context.Context, orderID uint, status model.OrderStatus, active bool) error {
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"status":    status,
			"is_active": active,
		}).Error
}
