package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"marketplace/internal/domain/model"
	"marketplace/internal/events"
	repo "marketplace/internal/repository"
)

// 注文イベントの発行（kafka実装はeventsパッケージ）
type EventPublisher interface {
	OrderEvent(eventType string, orderID int64, payload any)
}

type CheckoutInput struct {
	ShippingAddress string
	BillingAddress  string
	PaymentMethod   string
	IdempotencyKey  string
}

type CheckoutOutput struct {
	Order        OrderResponse    `json:"order"`
	Payment      *PaymentResponse `json:"payment,omitempty"`
	PaymentError string           `json:"payment_error,omitempty"`

	// 同じIdempotency-Keyの再送だった場合true（handlerは201ではなく200を返す）
	Replayed bool `json:"-"`
}

// CheckoutUsecase はカート確定の一連（検証→在庫確保→注文作成→決済開始）。
// 注文作成までを1トランザクションで行い、決済開始はcommit後に行う。
type CheckoutUsecase struct {
	tx          repo.TransactionManager
	inv         InventoryReconciler
	payments    *PaymentUsecase
	attempts    repo.CheckoutAttemptRepository
	pub         EventPublisher
	cache       CartCache
	taxRateBP   int64
	shippingFee int64
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	inv InventoryReconciler,
	payments *PaymentUsecase,
	attempts repo.CheckoutAttemptRepository,
	pub EventPublisher,
	cache CartCache,
	taxRateBP int64,
	shippingFee int64,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:          tx,
		inv:         inv,
		payments:    payments,
		attempts:    attempts,
		pub:         pub,
		cache:       cache,
		taxRateBP:   taxRateBP,
		shippingFee: shippingFee,
	}
}

// Checkout はカートを注文に確定する。
// 在庫はここで初めて強チェックし、1行でも足りなければ全体を巻き戻す。
// 同じIdempotency-Keyの再送は既存の注文をそのまま返す。
func (u *CheckoutUsecase) Checkout(ctx context.Context, buyerID int64, in CheckoutInput) (CheckoutOutput, error) {
	if buyerID <= 0 {
		return CheckoutOutput{}, NewUnauthorizedError("unauthorized")
	}
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.IdempotencyKey == "" || len(in.IdempotencyKey) > 255 {
		return CheckoutOutput{}, NewValidationError("idempotency key required")
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		return CheckoutOutput{}, NewValidationError("shipping address required")
	}
	if strings.TrimSpace(in.BillingAddress) == "" {
		in.BillingAddress = in.ShippingAddress
	}
	method, ok := model.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return CheckoutOutput{}, NewValidationError("invalid payment method")
	}

	attemptID, err := u.attempts.Create(ctx, model.CheckoutAttempt{
		BuyerID:        buyerID,
		IdempotencyKey: in.IdempotencyKey,
		State:          model.CheckoutStateStarted,
	})
	if err != nil {
		return CheckoutOutput{}, NewInternalError("db error")
	}

	var (
		order      model.Order
		orderItems []model.OrderItem
		replayed   bool
	)

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 再送チェック
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, buyerID, in.IdempotencyKey)
		if err != nil {
			return NewInternalError("db error")
		}
		if found {
			order = existing
			orderItems, err = r.OrderItems().ListByOrderID(ctx, existing.ID)
			if err != nil {
				return NewInternalError("db error")
			}
			replayed = true
			return nil
		}

		cart, err := r.Carts().FindActiveByBuyerID(ctx, buyerID)
		if err == repo.ErrNotFound {
			return NewValidationError("cart is empty")
		}
		if err != nil {
			return NewInternalError("db error")
		}

		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewInternalError("db error")
		}
		if len(cartItems) == 0 {
			return NewValidationError("cart is empty")
		}

		if err := u.attempts.UpdateState(ctx, attemptID, model.CheckoutStateCartValidated, nil, ""); err != nil {
			log.Warnf("record cart validated for attempt %d: %v", attemptID, err)
		}

		// 明細ごとに最新価格を読み直してスナップショットを作る
		var subtotal int64
		lines := make([]ReserveLine, 0, len(cartItems))
		orderItems = make([]model.OrderItem, 0, len(cartItems))

		for _, ci := range cartItems {
			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if err == repo.ErrNotFound {
				return NewConflictError("item no longer available")
			}
			if err != nil {
				return NewInternalError("db error")
			}
			if !p.IsPurchasable() {
				return NewConflictError("item no longer available")
			}

			price := p.Price
			if ci.VariantID != nil {
				v, err := r.Products().FindVariantByID(ctx, *ci.VariantID)
				if err == repo.ErrNotFound {
					return NewConflictError("item no longer available")
				}
				if err != nil {
					return NewInternalError("db error")
				}
				if v.Price > 0 {
					price = v.Price
				}
			}

			subtotal += price * ci.Quantity
			lines = append(lines, ReserveLine{ProductID: ci.ProductID, VariantID: ci.VariantID, Qty: ci.Quantity})
			orderItems = append(orderItems, model.OrderItem{
				ProductID:           ci.ProductID,
				VariantID:           ci.VariantID,
				SellerID:            p.SellerID,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   price,
				Quantity:            ci.Quantity,
				Status:              model.OrderItemStatusPending,
			})
		}

		// 全行確保できなければここでエラー、tx巻き戻しで何も残らない
		if err := u.inv.ReserveAndDecrement(ctx, r, lines); err != nil {
			return err
		}

		var discount int64
		if cart.CouponCode != "" {
			coupon, err := r.Coupons().FindByCode(ctx, cart.CouponCode)
			if err != nil && err != repo.ErrNotFound {
				return NewInternalError("db error")
			}
			// 確定時に失効していたクーポンは黙って落とす
			if err == nil && coupon.IsUsable(time.Now()) {
				discount = coupon.DiscountFor(subtotal)
			}
		}

		tax := subtotal * u.taxRateBP / 10000
		total := subtotal + u.shippingFee + tax - discount

		order = model.Order{
			BuyerID:         buyerID,
			Status:          model.OrderStatusPendingPayment,
			Subtotal:        subtotal,
			ShippingFee:     u.shippingFee,
			Tax:             tax,
			Discount:        discount,
			Total:           total,
			ShippingAddress: in.ShippingAddress,
			BillingAddress:  in.BillingAddress,
			IdempotencyKey:  in.IdempotencyKey,
		}
		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			// 同じキーの同時確定に負けた場合は既存を返す
			existing, found, ferr := r.Orders().FindByIdempotencyKey(ctx, buyerID, in.IdempotencyKey)
			if ferr == nil && found {
				order = existing
				orderItems, err = r.OrderItems().ListByOrderID(ctx, existing.ID)
				if err != nil {
					return NewInternalError("db error")
				}
				replayed = true
				return nil
			}
			return NewInternalError("db error")
		}
		order.ID = orderID
		order.CreatedAt = time.Now()
		order.OrderNumber = model.BuildOrderNumber(orderID, order.CreatedAt)

		if err := r.Orders().SetOrderNumber(ctx, orderID, order.OrderNumber); err != nil {
			return NewInternalError("db error")
		}
		for i := range orderItems {
			orderItems[i].OrderID = orderID
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewInternalError("db error")
		}

		if err := r.Carts().UpdateStatus(ctx, cart.ID, model.CartStatusCheckedOut); err != nil {
			return NewInternalError("db error")
		}
		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return NewInternalError("db error")
		}
		return nil
	})
	if err != nil {
		// txごと巻き戻っているので補償対象はない。進行記録だけ締める。
		detail := "checkout aborted"
		if e, ok := AsError(err); ok {
			detail = e.Message
		}
		if uerr := u.attempts.UpdateState(ctx, attemptID, model.CheckoutStateCompensated, nil, detail); uerr != nil {
			log.Warnf("record checkout failure for attempt %d: %v", attemptID, uerr)
		}
		return CheckoutOutput{}, err
	}

	if err := u.attempts.UpdateState(ctx, attemptID, model.CheckoutStateOrderAssembled, &order.ID, ""); err != nil {
		log.Warnf("record order assembled for attempt %d: %v", attemptID, err)
	}

	u.cache.Invalidate(ctx, buyerID)

	if !replayed {
		itemLines := make([]events.ItemLine, 0, len(orderItems))
		for _, it := range orderItems {
			itemLines = append(itemLines, events.ItemLine{
				ProductID: it.ProductID,
				VariantID: it.VariantID,
				SellerID:  it.SellerID,
				Qty:       it.Quantity,
				UnitPrice: it.UnitPriceSnapshot,
			})
		}
		u.pub.OrderEvent(events.EventOrderPlaced, order.ID, events.OrderPlacedPayload{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			BuyerID:     buyerID,
			Total:       order.Total,
			Items:       itemLines,
		})
	}

	out := CheckoutOutput{
		Order:    toOrderResponse(order, orderItems),
		Replayed: replayed,
	}

	// 決済開始。失敗しても注文は残し、後からPOST /orders/:id/paymentsで再試行できる。
	pay, err := u.payments.CreatePayment(ctx, buyerID, order.ID, method)
	if err != nil {
		if replayed {
			// 再送で既に決着済みの注文なら決済は付けずに返す
			return out, nil
		}
		msg := "payment could not be started"
		if e, ok := AsError(err); ok {
			msg = e.Message
		}
		out.PaymentError = msg
		return out, nil
	}
	out.Payment = &pay

	return out, nil
}
