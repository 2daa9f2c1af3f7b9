package model

import "time"

// 在庫戻しの台帳。order_id のuniqueで二重戻しを防ぐ。
type StockRestock struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64     `gorm:"not null;uniqueIndex" json:"order_id"`
	Reason    string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
