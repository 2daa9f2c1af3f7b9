package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (model.Coupon, error)
}
