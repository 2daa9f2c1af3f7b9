package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error

	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)

	// 注文キャンセル時に明細をまとめて更新
	UpdateStatusByOrderID(ctx context.Context, orderID int64, status model.OrderItemStatus) error
}
