package repository

import (
	"context"
	"time"

	"marketplace/internal/domain/model"
)

type CartRepository interface {
	// ACTIVEカートを取得し、無ければTTL付きで作成。期限切れはABANDONEDにして作り直す。
	GetOrCreateActiveByBuyerID(ctx context.Context, buyerID int64, ttl time.Duration) (model.Cart, error)

	// 期限内のACTIVEカートを取得
	FindActiveByBuyerID(ctx context.Context, buyerID int64) (model.Cart, error)

	UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error

	SetCouponCode(ctx context.Context, cartID int64, code string) error

	// 明細を全削除
	Clear(ctx context.Context, cartID int64) error
}
