package model

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusFulfilling     OrderStatus = "FULFILLING"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusFailed         OrderStatus = "FAILED"
)

// 終端状態からは遷移しない
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// 注文。確定後はstatus以外を変更しない。
// 金額・住所はすべて確定時のスナップショット。
type Order struct {
	ID              int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	BuyerID         int64       `gorm:"not null;index;uniqueIndex:uq_orders_buyer_idem_key" json:"buyer_id"`
	OrderNumber     string      `gorm:"type:varchar(20);uniqueIndex" json:"order_number"`
	Status          OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Subtotal        int64       `gorm:"not null" json:"subtotal"`
	ShippingFee     int64       `gorm:"not null" json:"shipping_fee"`
	Tax             int64       `gorm:"not null" json:"tax"`
	Discount        int64       `gorm:"not null" json:"discount"`
	Total           int64       `gorm:"not null" json:"total"`
	ShippingAddress string      `gorm:"type:text;not null" json:"shipping_address"`
	BillingAddress  string      `gorm:"type:text;not null" json:"billing_address"`
	IdempotencyKey  string      `gorm:"type:varchar(255);not null;uniqueIndex:uq_orders_buyer_idem_key" json:"-"`
	CreatedAt       time.Time   `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// ORD-YYYYMMDD-000123 形式
func BuildOrderNumber(id int64, createdAt time.Time) string {
	return fmt.Sprintf("ORD-%s-%06d", createdAt.Format("20060102"), id)
}
