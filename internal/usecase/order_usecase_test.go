package usecase_test

import (
	"context"
	"testing"

	"marketplace/internal/domain/model"
	"marketplace/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type orderFixture struct {
	tx     *TxManagerMock
	orders *OrderRepoMock
	items  *OrderItemRepoMock
	inv    *InventoryRepoMock
	pub    *PublisherMock

	uc *usecase.OrderUsecase
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		tx:     new(TxManagerMock),
		orders: new(OrderRepoMock),
		items:  new(OrderItemRepoMock),
		inv:    new(InventoryRepoMock),
		pub:    &PublisherMock{},
	}

	f.tx.Repos = &TxReposMock{
		orders:     f.orders,
		orderItems: f.items,
		inventory:  f.inv,
	}

	f.uc = usecase.NewOrderUsecase(f.tx, f.orders, f.items, usecase.InventoryReconciler{}, f.pub)
	return f
}

func TestOrder_List_NormalizesPaging(t *testing.T) {
	f := newOrderFixture()

	f.orders.On("ListByBuyerID", mock.Anything, int64(1), 1, 20).Return([]model.Order{
		{ID: 42, BuyerID: 1, Status: model.OrderStatusPaid},
	}, int64(1), nil)

	out, err := f.uc.ListMyOrders(context.Background(), 1, 0, -5)
	assert.NoError(t, err)
	assert.Equal(t, 1, out.Page)
	assert.Equal(t, 20, out.Limit)
	assert.Equal(t, 1, len(out.Orders))

	f.orders.AssertExpectations(t)
}

func TestOrder_Detail_ForeignOrderNotFound(t *testing.T) {
	f := newOrderFixture()

	f.orders.On("FindByID", mock.Anything, int64(42)).Return(model.Order{ID: 42, BuyerID: 2}, nil)

	_, err := f.uc.GetMyOrderDetail(context.Background(), 1, 42)
	assertKind(t, err, usecase.KindNotFound)

	f.items.AssertNotCalled(t, "ListByOrderID", mock.Anything, mock.Anything)
}

func TestOrder_Cancel_RestocksAndCancelsItems(t *testing.T) {
	f := newOrderFixture()

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(model.Order{ID: 42, BuyerID: 1, Status: model.OrderStatusPendingPayment}, nil)
	f.orders.On("UpdateStatusIf", mock.Anything, int64(42),
		[]model.OrderStatus{model.OrderStatusPendingPayment, model.OrderStatusPaid},
		model.OrderStatusCancelled).Return(true, nil)

	f.inv.On("CreateRestock", mock.Anything, int64(42), "order cancelled").Return(true, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(42)).Return([]model.OrderItem{
		{ID: 1, OrderID: 42, ProductID: 10, Quantity: 2, Status: model.OrderItemStatusPending},
	}, nil)
	f.inv.On("IncreaseStock", mock.Anything, int64(10), int64(2)).Return(nil)
	f.inv.On("MarkActiveIfRestocked", mock.Anything, int64(10)).Return(nil)
	f.items.On("UpdateStatusByOrderID", mock.Anything, int64(42), model.OrderItemStatusCancelled).Return(nil)

	out, err := f.uc.CancelOrder(context.Background(), 1, 42)
	assert.NoError(t, err)
	assert.Equal(t, "CANCELLED", out.Status)
	assert.Equal(t, []string{"OrderCancelled"}, f.pub.Events)

	f.inv.AssertExpectations(t)
}

// 終端状態の注文はキャンセルできない
func TestOrder_Cancel_TerminalConflict(t *testing.T) {
	f := newOrderFixture()

	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(model.Order{ID: 42, BuyerID: 1, Status: model.OrderStatusFailed}, nil)
	f.orders.On("UpdateStatusIf", mock.Anything, int64(42),
		[]model.OrderStatus{model.OrderStatusPendingPayment, model.OrderStatusPaid},
		model.OrderStatusCancelled).Return(false, nil)

	_, err := f.uc.CancelOrder(context.Background(), 1, 42)
	assertKind(t, err, usecase.KindConflict)

	assert.Equal(t, 0, len(f.pub.Events))
	f.inv.AssertNotCalled(t, "CreateRestock", mock.Anything, mock.Anything, mock.Anything)
}
