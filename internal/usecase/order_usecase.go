package usecase

import (
	"context"
	"time"

	"marketplace/internal/domain/model"
	"marketplace/internal/events"
	repo "marketplace/internal/repository"
)

type OrderItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	SellerID  int64  `json:"seller_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
	Status    string `json:"status"`
}

type OrderResponse struct {
	ID              int64               `json:"id"`
	OrderNumber     string              `json:"order_number"`
	Status          string              `json:"status"`
	Subtotal        int64               `json:"subtotal"`
	ShippingFee     int64               `json:"shipping_fee"`
	Tax             int64               `json:"tax"`
	Discount        int64               `json:"discount"`
	Total           int64               `json:"total"`
	ShippingAddress string              `json:"shipping_address"`
	BillingAddress  string              `json:"billing_address"`
	Items           []OrderItemResponse `json:"items,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int64           `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// OrderUsecase は注文の参照とキャンセル。
type OrderUsecase struct {
	tx            repo.TransactionManager
	orderRepo     repo.OrderRepository
	orderItemRepo repo.OrderItemRepository
	inv           InventoryReconciler
	pub           EventPublisher
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	orderRepo repo.OrderRepository,
	orderItemRepo repo.OrderItemRepository,
	inv InventoryReconciler,
	pub EventPublisher,
) *OrderUsecase {
	return &OrderUsecase{
		tx:            tx,
		orderRepo:     orderRepo,
		orderItemRepo: orderItemRepo,
		inv:           inv,
		pub:           pub,
	}
}

// 自分の注文一覧（新しい順、ページング）
func (u *OrderUsecase) ListMyOrders(ctx context.Context, buyerID int64, page int, limit int) (OrderListResponse, error) {
	if buyerID <= 0 {
		return OrderListResponse{}, NewUnauthorizedError("unauthorized")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	orders, total, err := u.orderRepo.ListByBuyerID(ctx, buyerID, page, limit)
	if err != nil {
		return OrderListResponse{}, NewInternalError("db error")
	}

	resp := OrderListResponse{
		Orders: make([]OrderResponse, 0, len(orders)),
		Total:  total,
		Page:   page,
		Limit:  limit,
	}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(o, nil))
	}
	return resp, nil
}

// 注文詳細。他人の注文は存在しない扱い。
func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, buyerID int64, orderID int64) (OrderResponse, error) {
	if buyerID <= 0 {
		return OrderResponse{}, NewUnauthorizedError("unauthorized")
	}

	order, err := u.orderRepo.FindByID(ctx, orderID)
	if err == repo.ErrNotFound {
		return OrderResponse{}, NewNotFoundError("order not found")
	}
	if err != nil {
		return OrderResponse{}, NewInternalError("db error")
	}
	if order.BuyerID != buyerID {
		return OrderResponse{}, NewNotFoundError("order not found")
	}

	items, err := u.orderItemRepo.ListByOrderID(ctx, orderID)
	if err != nil {
		return OrderResponse{}, NewInternalError("db error")
	}

	return toOrderResponse(order, items), nil
}

// CancelOrder は支払い前後（PENDING_PAYMENT/PAID）の注文をキャンセルし、在庫を戻す。
// それ以外の状態からはConflict。
func (u *OrderUsecase) CancelOrder(ctx context.Context, buyerID int64, orderID int64) (OrderResponse, error) {
	if buyerID <= 0 {
		return OrderResponse{}, NewUnauthorizedError("unauthorized")
	}

	var order model.Order
	var items []model.OrderItem

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewNotFoundError("order not found")
		}
		if err != nil {
			return NewInternalError("db error")
		}
		if o.BuyerID != buyerID {
			return NewNotFoundError("order not found")
		}

		moved, err := r.Orders().UpdateStatusIf(ctx, o.ID,
			[]model.OrderStatus{model.OrderStatusPendingPayment, model.OrderStatusPaid},
			model.OrderStatusCancelled)
		if err != nil {
			return NewInternalError("db error")
		}
		if !moved {
			return NewConflictError("order cannot be cancelled")
		}

		// 明細をCANCELLEDにする前に戻す（戻し対象の判定に使うため）
		if _, err := u.inv.Restock(ctx, r, o.ID, "order cancelled"); err != nil {
			return err
		}
		if err := r.OrderItems().UpdateStatusByOrderID(ctx, o.ID, model.OrderItemStatusCancelled); err != nil {
			return NewInternalError("db error")
		}

		o.Status = model.OrderStatusCancelled
		order = o

		items, err = r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return NewInternalError("db error")
		}
		return nil
	})
	if err != nil {
		return OrderResponse{}, err
	}

	u.pub.OrderEvent(events.EventOrderCancelled, order.ID, events.OrderCancelledPayload{OrderID: order.ID})

	return toOrderResponse(order, items), nil
}

func toOrderResponse(o model.Order, items []model.OrderItem) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		Subtotal:        o.Subtotal,
		ShippingFee:     o.ShippingFee,
		Tax:             o.Tax,
		Discount:        o.Discount,
		Total:           o.Total,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		CreatedAt:       o.CreatedAt,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			SellerID:  it.SellerID,
			Name:      it.ProductNameSnapshot,
			UnitPrice: it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			Status:    string(it.Status),
		})
	}
	return resp
}
