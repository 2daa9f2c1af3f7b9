package model

import "time"

type CheckoutState string

const (
	CheckoutStateStarted          CheckoutState = "STARTED"
	CheckoutStateCartValidated    CheckoutState = "CART_VALIDATED"
	CheckoutStateOrderAssembled   CheckoutState = "ORDER_ASSEMBLED"
	CheckoutStatePaymentInitiated CheckoutState = "PAYMENT_INITIATED"
	CheckoutStateSettled          CheckoutState = "SETTLED"
	CheckoutStateCompensating     CheckoutState = "COMPENSATING"
	CheckoutStateCompensated      CheckoutState = "COMPENSATED"
)

// チェックアウト1回分の進行記録
type CheckoutAttempt struct {
	ID             int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	BuyerID        int64         `gorm:"not null;index" json:"buyer_id"`
	IdempotencyKey string        `gorm:"type:varchar(255);not null;index" json:"-"`
	State          CheckoutState `gorm:"type:varchar(20);not null" json:"state"`
	OrderID        *int64        `gorm:"index" json:"order_id"`
	Detail         string        `gorm:"type:varchar(255)" json:"detail"`
	CreatedAt      time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
