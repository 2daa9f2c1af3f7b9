package model

import "time"

type CartStatus string

const (
	CartStatusActive     CartStatus = "ACTIVE"
	CartStatusCheckedOut CartStatus = "CHECKED_OUT"
	CartStatusAbandoned  CartStatus = "ABANDONED"
)

// 1バイヤーにつきACTIVEは1つ。期限切れはABANDONED扱い。
type Cart struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	BuyerID    int64      `gorm:"not null;index" json:"buyer_id"`
	Status     CartStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CouponCode string     `gorm:"type:varchar(50)" json:"coupon_code"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt  time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (c Cart) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
