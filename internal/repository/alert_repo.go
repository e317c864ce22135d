package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cryptofolio/internal/model"
	"cryptofolio/pkg/utils"

	"gorm.io/gorm"
)

type GetAlertsParam struct {
	IDs      []uint `json:"ids"`
	UserIDs  []uint `json:"user_ids"`
	IsActive *bool  `json:"is_active"`
}

type AlertRepository interface {
	Get(ctx context.Context, param GetAlertsParam, opts ...utils.DBOption) ([]model.Alert, error)
	Create(ctx context.Context, alert *model.Alert, opts ...utils.DBOption) error
	Disarm(ctx context.Context, alertID uint, notifiedAt time.Time) error
}

type alertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) Get(ctx context.Context, param GetAlertsParam, opts ...utils.DBOption) ([]model.Alert, error) {
	var alerts []model.Alert

	qFilter := []string{}
	qFilterParam := []interface{}{}

	if len(param.IDs) > 0 {
		qFilter = append(qFilter, "id IN (?)")
		qFilterParam = append(qFilterParam, param.IDs)
	}

	if len(param.UserIDs) > 0 {
		qFilter = append(qFilter, "user_id IN (?)")
		qFilterParam = append(qFilterParam, param.UserIDs)
	}

	if param.IsActive != nil {
		qFilter = append(qFilter, "is_active = ?")
		qFilterParam = append(qFilterParam, *param.IsActive)
	}

	if len(qFilter) == 0 {
		return nil, fmt.Errorf("no filter provided")
	}

	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := db.Where(strings.Join(qFilter, " AND "), qFilterParam...).Order("id ASC").Find(&alerts).Error; err != nil {
		return nil, err
	}

	return alerts, nil
}

func (r *alertRepository) Create(ctx context.Context, alert *model.Alert, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(alert).Error
}

// Disarm flips the alert inactive and stamps the notification time.
// One-shot semantics: the alert stays silent until re-armed externally.
func (r *alertRepository) Disarm(ctx context.Context, alertID uint, notifiedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Alert{}).
		Where("id = ?", alertID).
		Updates(map[string]interface{}{
			"is_active":        false,
			"last_notified_at": notifiedAt,
		}).Error
}
