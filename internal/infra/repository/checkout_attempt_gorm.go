package repository

import (
	"context"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type CheckoutAttemptGormRepository struct {
	db *gorm.DB
}

func NewCheckoutAttemptGormRepository(db *gorm.DB) *CheckoutAttemptGormRepository {
	return &CheckoutAttemptGormRepository{db: db}
}

func (r *CheckoutAttemptGormRepository) Create(ctx context.Context, a model.CheckoutAttempt) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&a).Error; err != nil {
		return 0, err
	}
	return a.ID, nil
}

func (r *CheckoutAttemptGormRepository) UpdateState(ctx context.Context, attemptID int64, state model.CheckoutState, orderID *int64, detail string) error {
	updates := map[string]interface{}{
		"state":  state,
		"detail": detail,
	}
	if orderID != nil {
		updates["order_id"] = *orderID
	}

	res := r.db.WithContext(ctx).Model(&model.CheckoutAttempt{}).
		Where("id = ?", attemptID).
		Updates(updates)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 決済の決着はwebhook側で起きるため注文IDで更新する
func (r *CheckoutAttemptGormRepository) UpdateStateByOrderID(ctx context.Context, orderID int64, state model.CheckoutState, detail string) error {
	res := r.db.WithContext(ctx).Model(&model.CheckoutAttempt{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"state":  state,
			"detail": detail,
		})

	return res.Error
}
