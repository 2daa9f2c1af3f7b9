package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)

	ListByBuyerID(ctx context.Context, buyerID int64, page int, limit int) ([]model.Order, int64, error)

	Create(ctx context.Context, order model.Order) (int64, error)

	SetOrderNumber(ctx context.Context, orderID int64, orderNumber string) error

	// fromのいずれかに一致する場合だけtoへ遷移。勝者のみtrue。
	UpdateStatusIf(ctx context.Context, orderID int64, from []model.OrderStatus, to model.OrderStatus) (bool, error)

	FindByIdempotencyKey(ctx context.Context, buyerID int64, key string) (model.Order, bool, error)
}
