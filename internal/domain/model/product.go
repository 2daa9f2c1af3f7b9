package model

import (
	"time"

	"gorm.io/gorm"
)

type ProductStatus string

const (
	ProductStatusActive     ProductStatus = "ACTIVE"
	ProductStatusDraft      ProductStatus = "DRAFT"
	ProductStatusArchived   ProductStatus = "ARCHIVED"
	ProductStatusOutOfStock ProductStatus = "OUT_OF_STOCK"
)

// カタログは外部サービスが正。ここでは読み取り＋在庫減算のみ。
type Product struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID    int64          `gorm:"not null;index" json:"seller_id"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Price       int64          `gorm:"not null" json:"price"`
	Stock       int64          `gorm:"not null" json:"stock"`
	Status      ProductStatus  `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// 購入可能か（ACTIVEのみ）
func (p Product) IsPurchasable() bool {
	return p.Status == ProductStatusActive
}

// バリエーション。price=0 は商品価格を引き継ぐ。
type ProductVariant struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64     `gorm:"not null;index" json:"product_id"`
	Name      string    `gorm:"type:varchar(50);not null" json:"name"`
	Price     int64     `gorm:"not null" json:"price"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
