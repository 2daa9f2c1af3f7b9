package repository

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// バイヤーのACTIVEカートを取得し、無ければ作成。
// 期限切れのACTIVEはABANDONEDへ落としてから作り直す。
func (r *CartGormRepository) GetOrCreateActiveByBuyerID(ctx context.Context, buyerID int64, ttl time.Duration) (model.Cart, error) {

	var cart model.Cart

	//トランザクションで探す→無ければ作る
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		findErr := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("buyer_id = ? AND status = ?", buyerID, model.CartStatusActive).
			Order("id desc").
			First(&cart).Error

		if findErr == nil {
			if !cart.IsExpired(now) {
				return nil
			}
			// 期限切れは放棄扱い
			if err := tx.Model(&model.Cart{}).
				Where("id = ?", cart.ID).
				Update("status", model.CartStatusAbandoned).Error; err != nil {
				return err
			}
		} else if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		newCart := model.Cart{
			BuyerID:   buyerID,
			Status:    model.CartStatusActive,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := tx.Create(&newCart).Error; err != nil {
			retryErr := tx.
				Where("buyer_id = ? AND status = ? AND expires_at > ?", buyerID, model.CartStatusActive, now).
				Order("id desc").
				First(&cart).Error
			if retryErr == nil {
				return nil
			}
			return err
		}

		cart = newCart
		return nil
	})

	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// 期限内のACTIVEカートを取得
func (r *CartGormRepository) FindActiveByBuyerID(ctx context.Context, buyerID int64) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND status = ? AND expires_at > ?", buyerID, model.CartStatusActive, time.Now()).
		Order("id desc").
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// carts.statusを更新
func (r *CartGormRepository) UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Update("status", status)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// クーポンコードを設定
func (r *CartGormRepository) SetCouponCode(ctx context.Context, cartID int64, code string) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Update("coupon_code", code)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 指定カートの明細を全削除
func (r *CartGormRepository) Clear(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart model.Cart
		if err := tx.Where("id = ?", cartID).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repo.ErrNotFound
			}
			return err
		}

		if err := tx.Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}

		return nil
	})
}
