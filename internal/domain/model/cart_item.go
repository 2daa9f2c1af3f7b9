package model

import "time"

// カートの明細
// unit_price_snapshot は追加時点の表示用価格。請求時は最新価格を読み直す。
type CartItem struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID            int64     `gorm:"not null;index" json:"cart_id"`
	ProductID         int64     `gorm:"not null;index" json:"product_id"`
	VariantID         *int64    `gorm:"index" json:"variant_id"`
	Quantity          int64     `gorm:"not null" json:"quantity"`
	UnitPriceSnapshot int64     `gorm:"not null;column:unit_price_snapshot" json:"unit_price_snapshot"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
