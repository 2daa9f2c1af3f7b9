package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"marketplace/internal/domain/model"
	"marketplace/internal/gateway"
	repo "marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	carts      repo.CartRepository
	cartItems  repo.CartItemRepository
	inventory  repo.InventoryRepository
	products   repo.ProductRepository
	payments   repo.PaymentRepository
	coupons    repo.CouponRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository         { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *TxReposMock) Carts() repo.CartRepository           { return r.carts }
func (r *TxReposMock) CartItems() repo.CartItemRepository   { return r.cartItems }
func (r *TxReposMock) Inventory() repo.InventoryRepository  { return r.inventory }
func (r *TxReposMock) Products() repo.ProductRepository     { return r.products }
func (r *TxReposMock) Payments() repo.PaymentRepository     { return r.payments }
func (r *TxReposMock) Coupons() repo.CouponRepository       { return r.coupons }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ListByBuyerID(ctx context.Context, buyerID int64, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, buyerID, page, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepoMock) SetOrderNumber(ctx context.Context, orderID int64, orderNumber string) error {
	args := m.Called(ctx, orderID, orderNumber)
	return args.Error(0)
}

func (m *OrderRepoMock) UpdateStatusIf(ctx context.Context, orderID int64, from []model.OrderStatus, to model.OrderStatus) (bool, error) {
	args := m.Called(ctx, orderID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) FindByIdempotencyKey(ctx context.Context, buyerID int64, key string) (model.Order, bool, error) {
	args := m.Called(ctx, buyerID, key)
	o, _ := args.Get(0).(model.Order)
	return o, args.Bool(1), args.Error(2)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

func (m *OrderItemRepoMock) UpdateStatusByOrderID(ctx context.Context, orderID int64, status model.OrderItemStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

type CartRepoMock struct{ mock.Mock }

func (m *CartRepoMock) GetOrCreateActiveByBuyerID(ctx context.Context, buyerID int64, ttl time.Duration) (model.Cart, error) {
	args := m.Called(ctx, buyerID, ttl)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRepoMock) FindActiveByBuyerID(ctx context.Context, buyerID int64) (model.Cart, error) {
	args := m.Called(ctx, buyerID)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRepoMock) UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error {
	args := m.Called(ctx, cartID, status)
	return args.Error(0)
}

func (m *CartRepoMock) SetCouponCode(ctx context.Context, cartID int64, code string) error {
	args := m.Called(ctx, cartID, code)
	return args.Error(0)
}

func (m *CartRepoMock) Clear(ctx context.Context, cartID int64) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

type CartItemRepoMock struct{ mock.Mock }

func (m *CartItemRepoMock) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	args := m.Called(ctx, cartID)
	items, _ := args.Get(0).([]model.CartItem)
	return items, args.Error(1)
}

func (m *CartItemRepoMock) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	args := m.Called(ctx, cartItemID)
	it, _ := args.Get(0).(model.CartItem)
	return it, args.Error(1)
}

func (m *CartItemRepoMock) UpsertByCartAndProduct(ctx context.Context, cartID int64, productID int64, variantID *int64, addQty int64, unitPriceSnapshot int64) error {
	args := m.Called(ctx, cartID, productID, variantID, addQty, unitPriceSnapshot)
	return args.Error(0)
}

func (m *CartItemRepoMock) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	args := m.Called(ctx, cartItemID, qty)
	return args.Error(0)
}

func (m *CartItemRepoMock) DeleteByID(ctx context.Context, cartItemID int64) error {
	args := m.Called(ctx, cartItemID)
	return args.Error(0)
}

func (m *CartItemRepoMock) IsOwnedByBuyer(ctx context.Context, cartItemID int64, buyerID int64) (bool, error) {
	args := m.Called(ctx, cartItemID, buyerID)
	return args.Bool(0), args.Error(1)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) FindByID(ctx context.Context, productID int64) (model.Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) FindVariantByID(ctx context.Context, variantID int64) (model.ProductVariant, error) {
	args := m.Called(ctx, variantID)
	v, _ := args.Get(0).(model.ProductVariant)
	return v, args.Error(1)
}

type CouponRepoMock struct{ mock.Mock }

func (m *CouponRepoMock) FindByCode(ctx context.Context, code string) (model.Coupon, error) {
	args := m.Called(ctx, code)
	c, _ := args.Get(0).(model.Coupon)
	return c, args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	args := m.Called(ctx, productID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepoMock) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *InventoryRepoMock) MarkOutOfStockIfDepleted(ctx context.Context, productID int64) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func (m *InventoryRepoMock) MarkActiveIfRestocked(ctx context.Context, productID int64) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func (m *InventoryRepoMock) CreateRestock(ctx context.Context, orderID int64, reason string) (bool, error) {
	args := m.Called(ctx, orderID, reason)
	return args.Bool(0), args.Error(1)
}

type PaymentRepoMock struct{ mock.Mock }

func (m *PaymentRepoMock) FindByID(ctx context.Context, paymentID int64) (model.Payment, error) {
	args := m.Called(ctx, paymentID)
	p, _ := args.Get(0).(model.Payment)
	return p, args.Error(1)
}

func (m *PaymentRepoMock) FindByReference(ctx context.Context, reference string) (model.Payment, error) {
	args := m.Called(ctx, reference)
	p, _ := args.Get(0).(model.Payment)
	return p, args.Error(1)
}

func (m *PaymentRepoMock) FindActiveByOrderID(ctx context.Context, orderID int64) (model.Payment, bool, error) {
	args := m.Called(ctx, orderID)
	p, _ := args.Get(0).(model.Payment)
	return p, args.Bool(1), args.Error(2)
}

func (m *PaymentRepoMock) Create(ctx context.Context, p model.Payment) (int64, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(int64), args.Error(1)
}

func (m *PaymentRepoMock) MarkProcessing(ctx context.Context, paymentID int64, authorizationURL string, gatewayResponse string) error {
	args := m.Called(ctx, paymentID, authorizationURL, gatewayResponse)
	return args.Error(0)
}

func (m *PaymentRepoMock) SettleIf(ctx context.Context, paymentID int64, to model.PaymentStatus, gatewayResponse string, paidAt *time.Time) (bool, error) {
	args := m.Called(ctx, paymentID, to)
	return args.Bool(0), args.Error(1)
}

type AttemptRepoMock struct{ mock.Mock }

func (m *AttemptRepoMock) Create(ctx context.Context, a model.CheckoutAttempt) (int64, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(int64), args.Error(1)
}

func (m *AttemptRepoMock) UpdateState(ctx context.Context, attemptID int64, state model.CheckoutState, orderID *int64, detail string) error {
	args := m.Called(ctx, attemptID, state)
	return args.Error(0)
}

func (m *AttemptRepoMock) UpdateStateByOrderID(ctx context.Context, orderID int64, state model.CheckoutState, detail string) error {
	args := m.Called(ctx, orderID, state)
	return args.Error(0)
}

// =====================
// Cache / Publisher / Gateway mocks
// =====================

// CacheMock は呼び出しを数えるだけの軽いfake
type CacheMock struct {
	summary     usecase.CartSummary
	hit         bool
	Invalidated int
	SetCalls    int
	GetCalls    int
}

func (c *CacheMock) GetSummary(ctx context.Context, buyerID int64) (usecase.CartSummary, bool) {
	c.GetCalls++
	return c.summary, c.hit
}

func (c *CacheMock) SetSummary(ctx context.Context, buyerID int64, s usecase.CartSummary) {
	c.SetCalls++
	c.summary = s
}

func (c *CacheMock) Invalidate(ctx context.Context, buyerID int64) {
	c.Invalidated++
}

// PublisherMock は発行されたイベント種別を記録する
type PublisherMock struct {
	Events []string
}

func (p *PublisherMock) OrderEvent(eventType string, orderID int64, payload any) {
	p.Events = append(p.Events, eventType)
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) Initialize(ctx context.Context, req gateway.InitializeRequest) (gateway.InitializeResult, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(gateway.InitializeResult)
	return r, args.Error(1)
}

func (m *GatewayMock) Verify(ctx context.Context, reference string) (gateway.VerifyResult, error) {
	args := m.Called(ctx, reference)
	r, _ := args.Get(0).(gateway.VerifyResult)
	return r, args.Error(1)
}

func (m *GatewayMock) VerifySignature(body []byte, signature string) bool {
	args := m.Called(body, signature)
	return args.Bool(0)
}

// =====================
// Helpers
// =====================

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

func assertKind(t *testing.T, err error, kind usecase.ErrorKind) {
	t.Helper()
	e, ok := usecase.AsError(err)
	if assert.True(t, ok, "err=%v is not a usecase error", err) {
		assert.Equal(t, kind, e.Kind)
	}
}
