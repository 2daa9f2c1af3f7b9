package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type CheckoutAttemptRepository interface {
	Create(ctx context.Context, a model.CheckoutAttempt) (int64, error)

	UpdateState(ctx context.Context, attemptID int64, state model.CheckoutState, orderID *int64, detail string) error

	// webhook側から注文IDで進行記録を更新する
	UpdateStateByOrderID(ctx context.Context, orderID int64, state model.CheckoutState, detail string) error
}
