package model

import "time"

// クーポン。percent_off_bp はベーシスポイント（1000 = 10%）。
type Coupon struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code         string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	PercentOffBP int64     `gorm:"not null" json:"percent_off_bp"`
	MinSubtotal  int64     `gorm:"not null" json:"min_subtotal"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (c Coupon) IsUsable(now time.Time) bool {
	return c.IsActive && now.Before(c.ExpiresAt)
}

// サブトータルに対する割引額
func (c Coupon) DiscountFor(subtotal int64) int64 {
	if subtotal < c.MinSubtotal {
		return 0
	}
	d := subtotal * c.PercentOffBP / 10000
	if d > subtotal {
		return subtotal
	}
	return d
}
