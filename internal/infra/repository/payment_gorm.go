package repository

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) FindByID(ctx context.Context, paymentID int64) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("id = ?", paymentID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) FindByReference(ctx context.Context, reference string) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

// 非終端（CREATED/PROCESSING）の決済を検索
func (r *PaymentGormRepository) FindActiveByOrderID(ctx context.Context, orderID int64) (model.Payment, bool, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID,
			[]model.PaymentStatus{model.PaymentStatusCreated, model.PaymentStatusProcessing}).
		Order("id desc").
		First(&p).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, false, nil
	}
	if err != nil {
		return model.Payment{}, false, err
	}
	return p, true, nil
}

func (r *PaymentGormRepository) Create(ctx context.Context, p model.Payment) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return 0, err
	}
	return p.ID, nil
}

// CREATED→PROCESSING
func (r *PaymentGormRepository) MarkProcessing(ctx context.Context, paymentID int64, authorizationURL string, gatewayResponse string) error {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", paymentID, model.PaymentStatusCreated).
		Updates(map[string]interface{}{
			"status":            model.PaymentStatusProcessing,
			"authorization_url": authorizationURL,
			"gateway_response":  gatewayResponse,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 非終端からのみ終端へ。先勝ちの条件付きUPDATE。
func (r *PaymentGormRepository) SettleIf(ctx context.Context, paymentID int64, to model.PaymentStatus, gatewayResponse string, paidAt *time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":           to,
		"gateway_response": gatewayResponse,
	}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}

	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status IN ?", paymentID,
			[]model.PaymentStatus{model.PaymentStatusCreated, model.PaymentStatusProcessing}).
		Updates(updates)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
