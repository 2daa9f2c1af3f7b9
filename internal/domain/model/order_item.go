package model

import "time"

type OrderItemStatus string

const (
	OrderItemStatusPending    OrderItemStatus = "PENDING"
	OrderItemStatusProcessing OrderItemStatus = "PROCESSING"
	OrderItemStatusShipped    OrderItemStatus = "SHIPPED"
	OrderItemStatusDelivered  OrderItemStatus = "DELIVERED"
	OrderItemStatusCancelled  OrderItemStatus = "CANCELLED"
)

// 注文明細。複数セラー注文で明細ごとに進行するため親注文とは別status。
// seller_id は購入時点の商品から複製（セラー絞り込み用）。
type OrderItem struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64           `gorm:"not null;index" json:"order_id"`
	ProductID           int64           `gorm:"not null;index" json:"product_id"`
	VariantID           *int64          `json:"variant_id"`
	SellerID            int64           `gorm:"not null;index" json:"seller_id"`
	ProductNameSnapshot string          `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPriceSnapshot   int64           `gorm:"not null" json:"unit_price_snapshot"`
	Quantity            int64           `gorm:"not null" json:"quantity"`
	Status              OrderItemStatus `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt           time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
