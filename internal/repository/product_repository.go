package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

// 商品はカタログサービスが正。ここでは読み取りのみ（在庫変更はInventoryRepository）。
type ProductRepository interface {
	FindByID(ctx context.Context, productID int64) (model.Product, error)
	FindVariantByID(ctx context.Context, variantID int64) (model.ProductVariant, error)
}
