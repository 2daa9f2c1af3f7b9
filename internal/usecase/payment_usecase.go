package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"marketplace/internal/domain/model"
	"marketplace/internal/events"
	"marketplace/internal/gateway"
	repo "marketplace/internal/repository"
)

// 決済ゲートウェイの約束（実装はgatewayパッケージ）
type PaymentGateway interface {
	Initialize(ctx context.Context, req gateway.InitializeRequest) (gateway.InitializeResult, error)
	Verify(ctx context.Context, reference string) (gateway.VerifyResult, error)
	VerifySignature(body []byte, signature string) bool
}

type PaymentResponse struct {
	ID               int64      `json:"id"`
	OrderID          int64      `json:"order_id"`
	Amount           int64      `json:"amount"`
	Currency         string     `json:"currency"`
	Method           string     `json:"method"`
	Status           string     `json:"status"`
	Reference        string     `json:"reference"`
	AuthorizationURL string     `json:"authorization_url,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
}

// PaymentUsecase は決済の開始・決着・照合。
// 決着（SUCCEEDED/FAILED）は先勝ちで、勝者だけが注文と在庫を動かす。
type PaymentUsecase struct {
	tx          repo.TransactionManager
	orderRepo   repo.OrderRepository
	paymentRepo repo.PaymentRepository
	attempts    repo.CheckoutAttemptRepository
	inv         InventoryReconciler
	gw          PaymentGateway
	pub         EventPublisher
	currency    string
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	orderRepo repo.OrderRepository,
	paymentRepo repo.PaymentRepository,
	attempts repo.CheckoutAttemptRepository,
	inv InventoryReconciler,
	gw PaymentGateway,
	pub EventPublisher,
	currency string,
) *PaymentUsecase {
	return &PaymentUsecase{
		tx:          tx,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		attempts:    attempts,
		inv:         inv,
		gw:          gw,
		pub:         pub,
		currency:    currency,
	}
}

// CreatePayment はPENDING_PAYMENTの注文に対して決済を開始する。
// 非終端の決済が既にあればそれを返す（二重開始させない）。
func (u *PaymentUsecase) CreatePayment(ctx context.Context, buyerID int64, orderID int64, method model.PaymentMethod) (PaymentResponse, error) {
	order, err := u.orderRepo.FindByID(ctx, orderID)
	if err == repo.ErrNotFound {
		return PaymentResponse{}, NewNotFoundError("order not found")
	}
	if err != nil {
		return PaymentResponse{}, NewInternalError("db error")
	}
	if order.BuyerID != buyerID {
		return PaymentResponse{}, NewNotFoundError("order not found")
	}
	if order.Status != model.OrderStatusPendingPayment {
		return PaymentResponse{}, NewConflictError("order is not awaiting payment")
	}

	if existing, ok, err := u.paymentRepo.FindActiveByOrderID(ctx, orderID); err != nil {
		return PaymentResponse{}, NewInternalError("db error")
	} else if ok {
		return toPaymentResponse(existing), nil
	}

	p := model.Payment{
		OrderID:   orderID,
		Amount:    order.Total,
		Currency:  u.currency,
		Method:    method,
		Status:    model.PaymentStatusCreated,
		Reference: "PAY_" + uuid.NewString(),
	}
	paymentID, err := u.paymentRepo.Create(ctx, p)
	if err != nil {
		// 同時開始は部分一意インデックス（order_id×非終端）に弾かれる。
		// 負けた側は勝者の決済を読み直してそれを返す。
		if existing, ok, ferr := u.paymentRepo.FindActiveByOrderID(ctx, orderID); ferr == nil && ok {
			return toPaymentResponse(existing), nil
		}
		return PaymentResponse{}, NewInternalError("db error")
	}
	p.ID = paymentID

	res, err := u.gw.Initialize(ctx, gateway.InitializeRequest{
		Reference:   p.Reference,
		AmountMinor: p.Amount,
		Currency:    p.Currency,
		Method:      string(p.Method),
	})
	if err != nil {
		// 開始失敗は決済だけFAILEDにする。注文はPENDING_PAYMENTのまま再試行できる。
		if _, serr := u.paymentRepo.SettleIf(ctx, paymentID, model.PaymentStatusFailed, err.Error(), nil); serr != nil {
			log.Errorf("mark payment %d failed: %v", paymentID, serr)
		}
		return PaymentResponse{}, NewGatewayError("payment could not be started")
	}

	if err := u.paymentRepo.MarkProcessing(ctx, paymentID, res.AuthorizationURL, string(res.Raw)); err != nil {
		return PaymentResponse{}, NewInternalError("db error")
	}
	p.Status = model.PaymentStatusProcessing
	p.AuthorizationURL = res.AuthorizationURL

	if err := u.attempts.UpdateStateByOrderID(ctx, orderID, model.CheckoutStatePaymentInitiated, ""); err != nil {
		log.Warnf("record payment initiated for order %d: %v", orderID, err)
	}

	return toPaymentResponse(p), nil
}

// webhookの本文。参照（reference）だけあればよい。
type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// HandleWebhook はゲートウェイ通知を受けて決済を決着させる。
// 署名不一致は拒否。再送・順序逆転は先勝ちで無害化する。
func (u *PaymentUsecase) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !u.gw.VerifySignature(body, signature) {
		return NewUnauthorizedError("invalid signature")
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return NewValidationError("invalid payload")
	}

	var succeeded bool
	switch ev.Event {
	case "charge.success":
		succeeded = true
	case "charge.failed":
		succeeded = false
	default:
		// 未知のイベントは受領だけして無視
		return nil
	}

	if ev.Data.Reference == "" {
		return NewValidationError("missing reference")
	}

	p, err := u.paymentRepo.FindByReference(ctx, ev.Data.Reference)
	if err == repo.ErrNotFound {
		return NewNotFoundError("payment not found")
	}
	if err != nil {
		return NewInternalError("db error")
	}

	return u.settle(ctx, p, succeeded, string(body))
}

// VerifyPayment はゲートウェイへ同期照会して状態を揃える（webhook遅延時の救済）。
func (u *PaymentUsecase) VerifyPayment(ctx context.Context, buyerID int64, paymentID int64) (PaymentResponse, error) {
	p, err := u.paymentRepo.FindByID(ctx, paymentID)
	if err == repo.ErrNotFound {
		return PaymentResponse{}, NewNotFoundError("payment not found")
	}
	if err != nil {
		return PaymentResponse{}, NewInternalError("db error")
	}

	order, err := u.orderRepo.FindByID(ctx, p.OrderID)
	if err != nil || order.BuyerID != buyerID {
		return PaymentResponse{}, NewNotFoundError("payment not found")
	}

	if p.Status.IsTerminal() {
		return toPaymentResponse(p), nil
	}

	res, err := u.gw.Verify(ctx, p.Reference)
	if err != nil {
		return PaymentResponse{}, NewGatewayError("verification unavailable")
	}

	switch res.Status {
	case "success":
		if err := u.settle(ctx, p, true, string(res.Raw)); err != nil {
			return PaymentResponse{}, err
		}
	case "failed":
		if err := u.settle(ctx, p, false, string(res.Raw)); err != nil {
			return PaymentResponse{}, err
		}
	default:
		// pendingはそのまま返す
		return toPaymentResponse(p), nil
	}

	p, err = u.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return PaymentResponse{}, NewInternalError("db error")
	}
	return toPaymentResponse(p), nil
}

// settle は決済を終端へ遷移させる。条件付きUPDATEの勝者だけが
// 注文の遷移・在庫戻し・イベント発行を行い、敗者は何もしない。
func (u *PaymentUsecase) settle(ctx context.Context, p model.Payment, succeeded bool, raw string) error {
	if p.Status.IsTerminal() {
		return nil
	}

	to := model.PaymentStatusFailed
	var paidAt *time.Time
	if succeeded {
		to = model.PaymentStatusSucceeded
		now := time.Now().UTC()
		paidAt = &now
	}

	won := false
	orderPaid := false

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		won, err = r.Payments().SettleIf(ctx, p.ID, to, raw, paidAt)
		if err != nil {
			return NewInternalError("db error")
		}
		if !won {
			return nil
		}

		if succeeded {
			orderPaid, err = r.Orders().UpdateStatusIf(ctx, p.OrderID,
				[]model.OrderStatus{model.OrderStatusPendingPayment}, model.OrderStatusPaid)
			if err != nil {
				return NewInternalError("db error")
			}
			return nil
		}

		// 決済失敗。注文を倒し、確保済み在庫を戻す。
		moved, err := r.Orders().UpdateStatusIf(ctx, p.OrderID,
			[]model.OrderStatus{model.OrderStatusPendingPayment}, model.OrderStatusFailed)
		if err != nil {
			return NewInternalError("db error")
		}
		if !moved {
			return nil
		}

		if err := u.attempts.UpdateStateByOrderID(ctx, p.OrderID, model.CheckoutStateCompensating, "payment failed"); err != nil {
			log.Warnf("record compensating for order %d: %v", p.OrderID, err)
		}

		if _, err := u.inv.Restock(ctx, r, p.OrderID, "payment failed"); err != nil {
			return err
		}
		if err := r.OrderItems().UpdateStatusByOrderID(ctx, p.OrderID, model.OrderItemStatusCancelled); err != nil {
			return NewInternalError("db error")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	if succeeded {
		// 注文が既にPENDING_PAYMENTでない（キャンセル済み等）場合は
		// 決済だけ決着させ、注文側の遷移・通知は行わない。
		if !orderPaid {
			log.Warnf("payment %d succeeded but order %d was not payable", p.ID, p.OrderID)
			return nil
		}
		if err := u.attempts.UpdateStateByOrderID(ctx, p.OrderID, model.CheckoutStateSettled, ""); err != nil {
			log.Warnf("record settled for order %d: %v", p.OrderID, err)
		}
		u.pub.OrderEvent(events.EventOrderPaid, p.OrderID, events.OrderPaidPayload{
			OrderID:   p.OrderID,
			PaymentID: p.ID,
			Reference: p.Reference,
			Amount:    p.Amount,
			Currency:  p.Currency,
		})
		return nil
	}

	if err := u.attempts.UpdateStateByOrderID(ctx, p.OrderID, model.CheckoutStateCompensated, "payment failed"); err != nil {
		log.Warnf("record compensated for order %d: %v", p.OrderID, err)
	}
	u.pub.OrderEvent(events.EventOrderFailed, p.OrderID, events.OrderFailedPayload{
		OrderID: p.OrderID,
		Reason:  "payment failed",
	})
	return nil
}

func toPaymentResponse(p model.Payment) PaymentResponse {
	return PaymentResponse{
		ID:               p.ID,
		OrderID:          p.OrderID,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Method:           string(p.Method),
		Status:           string(p.Status),
		Reference:        p.Reference,
		AuthorizationURL: p.AuthorizationURL,
		PaidAt:           p.PaidAt,
	}
}
