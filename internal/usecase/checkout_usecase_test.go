package usecase_test

import (
	"context"
	"errors"
	"testing"

	"marketplace/internal/domain/model"
	"marketplace/internal/gateway"
	repo "marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type checkoutFixture struct {
	tx       *TxManagerMock
	orders   *OrderRepoMock
	items    *OrderItemRepoMock
	carts    *CartRepoMock
	cartItem *CartItemRepoMock
	inv      *InventoryRepoMock
	products *ProductRepoMock
	payments *PaymentRepoMock
	coupons  *CouponRepoMock
	attempts *AttemptRepoMock
	gw       *GatewayMock
	pub      *PublisherMock
	cache    *CacheMock

	uc *usecase.CheckoutUsecase
}

// taxRateBP=750（7.5%）、送料一律500で組む
func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		tx:       new(TxManagerMock),
		orders:   new(OrderRepoMock),
		items:    new(OrderItemRepoMock),
		carts:    new(CartRepoMock),
		cartItem: new(CartItemRepoMock),
		inv:      new(InventoryRepoMock),
		products: new(ProductRepoMock),
		payments: new(PaymentRepoMock),
		coupons:  new(CouponRepoMock),
		attempts: new(AttemptRepoMock),
		gw:       new(GatewayMock),
		pub:      &PublisherMock{},
		cache:    &CacheMock{},
	}

	f.tx.Repos = &TxReposMock{
		orders:     f.orders,
		orderItems: f.items,
		carts:      f.carts,
		cartItems:  f.cartItem,
		inventory:  f.inv,
		products:   f.products,
		payments:   f.payments,
		coupons:    f.coupons,
	}

	paymentUC := usecase.NewPaymentUsecase(f.tx, f.orders, f.payments, f.attempts, usecase.InventoryReconciler{}, f.gw, f.pub, "USD")
	f.uc = usecase.NewCheckoutUsecase(f.tx, usecase.InventoryReconciler{}, paymentUC, f.attempts, f.pub, f.cache, 750, 500)
	return f
}

func validInput() usecase.CheckoutInput {
	return usecase.CheckoutInput{
		ShippingAddress: "12 Market St, Lagos",
		PaymentMethod:   "CARD",
		IdempotencyKey:  "key-1",
	}
}

func TestCheckout_MissingIdempotencyKey(t *testing.T) {
	f := newCheckoutFixture()

	in := validInput()
	in.IdempotencyKey = ""

	_, err := f.uc.Checkout(context.Background(), 1, in)
	assertKind(t, err, usecase.KindValidation)
	assertErrContains(t, err, "idempotency")
}

func TestCheckout_InvalidPaymentMethod(t *testing.T) {
	f := newCheckoutFixture()

	in := validInput()
	in.PaymentMethod = "CASH"

	_, err := f.uc.Checkout(context.Background(), 1, in)
	assertKind(t, err, usecase.KindValidation)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newCheckoutFixture()

	f.attempts.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.attempts.On("UpdateState", mock.Anything, int64(1), mock.Anything).Return(nil)
	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(1), "key-1").Return(model.Order{}, false, nil)
	f.carts.On("FindActiveByBuyerID", mock.Anything, int64(1)).Return(model.Cart{}, repo.ErrNotFound)

	_, err := f.uc.Checkout(context.Background(), 1, validInput())
	assertKind(t, err, usecase.KindValidation)
	assertErrContains(t, err, "cart is empty")
}

// 幸福系：最新価格でスナップショット、在庫減算、注文作成、カート確定、決済開始まで
func TestCheckout_HappyPath(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	f.attempts.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.attempts.On("UpdateState", mock.Anything, int64(1), mock.Anything).Return(nil)
	f.attempts.On("UpdateStateByOrderID", mock.Anything, int64(42), model.CheckoutStatePaymentInitiated).Return(nil)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(1), "key-1").Return(model.Order{}, false, nil)
	f.carts.On("FindActiveByBuyerID", mock.Anything, int64(1)).Return(model.Cart{ID: 5, BuyerID: 1}, nil)

	// カートには追加時の古い価格(1200)が残っている。請求は最新価格(1500)で行う。
	f.cartItem.On("ListByCartID", mock.Anything, int64(5)).Return([]model.CartItem{
		{ID: 1, CartID: 5, ProductID: 10, Quantity: 2, UnitPriceSnapshot: 1200},
		{ID: 2, CartID: 5, ProductID: 11, Quantity: 1, UnitPriceSnapshot: 500},
	}, nil)
	f.products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{ID: 10, SellerID: 7, Name: "mug", Price: 1500, Stock: 5, Status: model.ProductStatusActive}, nil)
	f.products.On("FindByID", mock.Anything, int64(11)).Return(model.Product{ID: 11, SellerID: 8, Name: "pen", Price: 500, Stock: 3, Status: model.ProductStatusActive}, nil)

	f.inv.On("DecreaseStockIfEnough", mock.Anything, int64(10), int64(2)).Return(true, nil)
	f.inv.On("MarkOutOfStockIfDepleted", mock.Anything, int64(10)).Return(nil)
	f.inv.On("DecreaseStockIfEnough", mock.Anything, int64(11), int64(1)).Return(true, nil)
	f.inv.On("MarkOutOfStockIfDepleted", mock.Anything, int64(11)).Return(nil)

	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(42), nil)
	f.orders.On("SetOrderNumber", mock.Anything, int64(42), mock.Anything).Return(nil)
	f.items.On("CreateBulk", mock.Anything, int64(42), mock.Anything).Return(nil)
	f.carts.On("UpdateStatus", mock.Anything, int64(5), model.CartStatusCheckedOut).Return(nil)
	f.carts.On("Clear", mock.Anything, int64(5)).Return(nil)

	// subtotal 3500 + shipping 500 + tax 262 = 4262
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(model.Order{ID: 42, BuyerID: 1, Status: model.OrderStatusPendingPayment, Total: 4262}, nil)
	f.payments.On("FindActiveByOrderID", mock.Anything, int64(42)).Return(model.Payment{}, false, nil)
	f.payments.On("Create", mock.Anything, mock.Anything).Return(int64(9), nil)
	f.gw.On("Initialize", mock.Anything, mock.Anything).Return(gateway.InitializeResult{AuthorizationURL: "https://pay.example/x"}, nil)
	f.payments.On("MarkProcessing", mock.Anything, int64(9), "https://pay.example/x", mock.Anything).Return(nil)

	out, err := f.uc.Checkout(ctx, 1, validInput())
	assert.NoError(t, err)

	assert.False(t, out.Replayed)
	assert.Equal(t, int64(42), out.Order.ID)
	assert.Equal(t, int64(3500), out.Order.Subtotal)
	assert.Equal(t, int64(500), out.Order.ShippingFee)
	assert.Equal(t, int64(262), out.Order.Tax)
	assert.Equal(t, int64(4262), out.Order.Total)
	assert.Equal(t, "PENDING_PAYMENT", out.Order.Status)
	assert.Equal(t, 2, len(out.Order.Items))
	assert.Equal(t, int64(1500), out.Order.Items[0].UnitPrice)

	if assert.NotNil(t, out.Payment) {
		assert.Equal(t, "PROCESSING", out.Payment.Status)
		assert.Equal(t, "https://pay.example/x", out.Payment.AuthorizationURL)
	}

	assert.Equal(t, 1, f.cache.Invalidated)
	assert.Equal(t, []string{"OrderPlaced"}, f.pub.Events)

	f.inv.AssertExpectations(t)
	f.orders.AssertExpectations(t)
	f.carts.AssertExpectations(t)
}

// 在庫不足は全体を巻き戻す（注文は作られない）
func TestCheckout_StockConflictAborts(t *testing.T) {
	f := newCheckoutFixture()

	f.attempts.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.attempts.On("UpdateState", mock.Anything, int64(1), mock.Anything).Return(nil)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(1), "key-1").Return(model.Order{}, false, nil)
	f.carts.On("FindActiveByBuyerID", mock.Anything, int64(1)).Return(model.Cart{ID: 5, BuyerID: 1}, nil)
	f.cartItem.On("ListByCartID", mock.Anything, int64(5)).Return([]model.CartItem{
		{ID: 1, CartID: 5, ProductID: 10, Quantity: 2, UnitPriceSnapshot: 1500},
		{ID: 2, CartID: 5, ProductID: 11, Quantity: 4, UnitPriceSnapshot: 500},
	}, nil)
	f.products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{ID: 10, Price: 1500, Status: model.ProductStatusActive}, nil)
	f.products.On("FindByID", mock.Anything, int64(11)).Return(model.Product{ID: 11, Price: 500, Status: model.ProductStatusActive}, nil)

	f.inv.On("DecreaseStockIfEnough", mock.Anything, int64(10), int64(2)).Return(true, nil)
	f.inv.On("MarkOutOfStockIfDepleted", mock.Anything, int64(10)).Return(nil)
	f.inv.On("DecreaseStockIfEnough", mock.Anything, int64(11), int64(4)).Return(false, nil)

	_, err := f.uc.Checkout(context.Background(), 1, validInput())
	assertKind(t, err, usecase.KindConflict)

	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.carts.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
}

// 販売終了した商品が混ざっていたら確定できない
func TestCheckout_UnavailableProductConflict(t *testing.T) {
	f := newCheckoutFixture()

	f.attempts.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.attempts.On("UpdateState", mock.Anything, int64(1), mock.Anything).Return(nil)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(1), "key-1").Return(model.Order{}, false, nil)
	f.carts.On("FindActiveByBuyerID", mock.Anything, int64(1)).Return(model.Cart{ID: 5, BuyerID: 1}, nil)
	f.cartItem.On("ListByCartID", mock.Anything, int64(5)).Return([]model.CartItem{
		{ID: 1, CartID: 5, ProductID: 10, Quantity: 1, UnitPriceSnapshot: 1500},
	}, nil)
	f.products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{ID: 10, Status: model.ProductStatusArchived}, nil)

	_, err := f.uc.Checkout(context.Background(), 1, validInput())
	assertKind(t, err, usecase.KindConflict)

	f.inv.AssertNotCalled(t, "DecreaseStockIfEnough", mock.Anything, mock.Anything, mock.Anything)
}

// 同じIdempotency-Keyの再送は既存の注文を返す（新しい注文は作らない）
func TestCheckout_IdempotentReplay(t *testing.T) {
	f := newCheckoutFixture()

	existing := model.Order{
		ID: 42, BuyerID: 1, OrderNumber: "ORD-20260829-000042",
		Status: model.OrderStatusPaid, Subtotal: 3500, Total: 4262,
		IdempotencyKey: "key-1",
	}

	f.attempts.On("Create", mock.Anything, mock.Anything).Return(int64(2), nil)
	f.attempts.On("UpdateState", mock.Anything, int64(2), mock.Anything).Return(nil)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(1), "key-1").Return(existing, true, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(42)).Return([]model.OrderItem{
		{ID: 1, OrderID: 42, ProductID: 10, Quantity: 2, UnitPriceSnapshot: 1500},
	}, nil)

	// 再試行の決済開始はPAID注文なのでConflictになる（決済なしで既存注文を返す）
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(existing, nil)

	out, err := f.uc.Checkout(context.Background(), 1, validInput())
	assert.NoError(t, err)

	assert.True(t, out.Replayed)
	assert.Equal(t, int64(42), out.Order.ID)
	assert.Equal(t, "PAID", out.Order.Status)
	assert.Nil(t, out.Payment)
	assert.Equal(t, 0, len(f.pub.Events))

	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.inv.AssertNotCalled(t, "DecreaseStockIfEnough", mock.Anything, mock.Anything, mock.Anything)
}

// 同じキーの同時確定に負けた側は、buyer_id×idempotency_keyの
// 一意制約エラーから既存注文を読み直して再送として返す
func TestCheckout_CreateRaceReturnsExisting(t *testing.T) {
	f := newCheckoutFixture()

	existing := model.Order{
		ID: 42, BuyerID: 1, Status: model.OrderStatusPendingPayment,
		Subtotal: 1500, Total: 2112, IdempotencyKey: "key-1",
	}

	f.attempts.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.attempts.On("UpdateState", mock.Anything, int64(1), mock.Anything).Return(nil)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(1), "key-1").Return(model.Order{}, false, nil).Once()
	f.carts.On("FindActiveByBuyerID", mock.Anything, int64(1)).Return(model.Cart{ID: 5, BuyerID: 1}, nil)
	f.cartItem.On("ListByCartID", mock.Anything, int64(5)).Return([]model.CartItem{
		{ID: 1, CartID: 5, ProductID: 10, Quantity: 1, UnitPriceSnapshot: 1500},
	}, nil)
	f.products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{ID: 10, Price: 1500, Status: model.ProductStatusActive}, nil)
	f.inv.On("DecreaseStockIfEnough", mock.Anything, int64(10), int64(1)).Return(true, nil)
	f.inv.On("MarkOutOfStockIfDepleted", mock.Anything, int64(10)).Return(nil)

	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(0), errors.New("duplicate key value violates unique constraint"))
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(1), "key-1").Return(existing, true, nil).Once()
	f.items.On("ListByOrderID", mock.Anything, int64(42)).Return([]model.OrderItem{
		{ID: 1, OrderID: 42, ProductID: 10, Quantity: 1, UnitPriceSnapshot: 1500},
	}, nil)

	// 勝者側が開始済みの決済がそのまま返る
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(existing, nil)
	f.payments.On("FindActiveByOrderID", mock.Anything, int64(42)).Return(processingPayment(), true, nil)

	out, err := f.uc.Checkout(context.Background(), 1, validInput())
	assert.NoError(t, err)

	assert.True(t, out.Replayed)
	assert.Equal(t, int64(42), out.Order.ID)
	assert.Equal(t, 0, len(f.pub.Events))

	f.carts.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
	f.items.AssertNotCalled(t, "CreateBulk", mock.Anything, mock.Anything, mock.Anything)
}

// ゲートウェイが落ちていても注文は残る（決済はあとから再試行できる）
func TestCheckout_GatewayDownKeepsOrder(t *testing.T) {
	f := newCheckoutFixture()

	f.attempts.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.attempts.On("UpdateState", mock.Anything, int64(1), mock.Anything).Return(nil)

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(1), "key-1").Return(model.Order{}, false, nil)
	f.carts.On("FindActiveByBuyerID", mock.Anything, int64(1)).Return(model.Cart{ID: 5, BuyerID: 1}, nil)
	f.cartItem.On("ListByCartID", mock.Anything, int64(5)).Return([]model.CartItem{
		{ID: 1, CartID: 5, ProductID: 10, Quantity: 1, UnitPriceSnapshot: 1500},
	}, nil)
	f.products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{ID: 10, Price: 1500, Status: model.ProductStatusActive}, nil)
	f.inv.On("DecreaseStockIfEnough", mock.Anything, int64(10), int64(1)).Return(true, nil)
	f.inv.On("MarkOutOfStockIfDepleted", mock.Anything, int64(10)).Return(nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(42), nil)
	f.orders.On("SetOrderNumber", mock.Anything, int64(42), mock.Anything).Return(nil)
	f.items.On("CreateBulk", mock.Anything, int64(42), mock.Anything).Return(nil)
	f.carts.On("UpdateStatus", mock.Anything, int64(5), model.CartStatusCheckedOut).Return(nil)
	f.carts.On("Clear", mock.Anything, int64(5)).Return(nil)

	f.orders.On("FindByID", mock.Anything, int64(42)).Return(model.Order{ID: 42, BuyerID: 1, Status: model.OrderStatusPendingPayment, Total: 2112}, nil)
	f.payments.On("FindActiveByOrderID", mock.Anything, int64(42)).Return(model.Payment{}, false, nil)
	f.payments.On("Create", mock.Anything, mock.Anything).Return(int64(9), nil)
	f.gw.On("Initialize", mock.Anything, mock.Anything).Return(gateway.InitializeResult{}, errors.New("connection refused"))
	f.payments.On("SettleIf", mock.Anything, int64(9), model.PaymentStatusFailed).Return(true, nil)

	out, err := f.uc.Checkout(context.Background(), 1, validInput())
	assert.NoError(t, err)

	assert.Equal(t, int64(42), out.Order.ID)
	assert.Nil(t, out.Payment)
	assert.NotEmpty(t, out.PaymentError)
	assert.Equal(t, []string{"OrderPlaced"}, f.pub.Events)
}
