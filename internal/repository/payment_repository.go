package repository

import (
	"context"
	"time"

	"marketplace/internal/domain/model"
)

type PaymentRepository interface {
	FindByID(ctx context.Context, paymentID int64) (model.Payment, error)

	// ゲートウェイ照合ID（reference）で検索
	FindByReference(ctx context.Context, reference string) (model.Payment, error)

	// 非終端（CREATED/PROCESSING）の決済を検索
	FindActiveByOrderID(ctx context.Context, orderID int64) (model.Payment, bool, error)

	Create(ctx context.Context, p model.Payment) (int64, error)

	// CREATED→PROCESSING。ゲートウェイ応答と認可URLを保存。
	MarkProcessing(ctx context.Context, paymentID int64, authorizationURL string, gatewayResponse string) error

	// 非終端からのみ終端へ遷移。先勝ち。勝者のみtrue。
	SettleIf(ctx context.Context, paymentID int64, to model.PaymentStatus, gatewayResponse string, paidAt *time.Time) (bool, error)
}
