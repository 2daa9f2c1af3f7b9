package repository

import (
	"context"
	"errors"
	"strings"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 在庫が足りるときだけ減らす。
// 条件付きUPDATEなので同時実行でも在庫は負にならない。
func (r *InventoryGormRepository) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))

	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, nil
}

// 在庫戻し（キャンセル・決済失敗）
func (r *InventoryGormRepository) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", qty))

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 在庫0になったらOUT_OF_STOCKへ
func (r *InventoryGormRepository) MarkOutOfStockIfDepleted(ctx context.Context, productID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock = 0 AND status = ?", productID, model.ProductStatusActive).
		Update("status", model.ProductStatusOutOfStock)

	return res.Error
}

// 在庫が戻ったらACTIVEへ
func (r *InventoryGormRepository) MarkActiveIfRestocked(ctx context.Context, productID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock > 0 AND status = ?", productID, model.ProductStatusOutOfStock).
		Update("status", model.ProductStatusActive)

	return res.Error
}

// 在庫戻し台帳に記録。order_idのuniqueで二重戻しを弾く。
func (r *InventoryGormRepository) CreateRestock(ctx context.Context, orderID int64, reason string) (bool, error) {
	rec := model.StockRestock{
		OrderID: orderID,
		Reason:  reason,
	}

	err := r.db.WithContext(ctx).Create(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	//pgのunique violation（SQLSTATE 23505）
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key")
}
