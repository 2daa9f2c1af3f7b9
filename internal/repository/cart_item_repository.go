package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)

	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)

	// 同一商品＋同一バリエーションは数量加算
	UpsertByCartAndProduct(ctx context.Context, cartID int64, productID int64, variantID *int64, addQty int64, unitPriceSnapshot int64) error

	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error

	DeleteByID(ctx context.Context, cartItemID int64) error

	// 明細がそのバイヤーのカートに属しているか
	IsOwnedByBuyer(ctx context.Context, cartItemID int64, buyerID int64) (bool, error)
}
