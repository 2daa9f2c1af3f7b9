package model

import "time"

type PaymentStatus string

const (
	PaymentStatusCreated    PaymentStatus = "CREATED"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusSucceeded  PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed
}

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodMobileMoney  PaymentMethod = "MOBILE_MONEY"
	PaymentMethodWallet       PaymentMethod = "WALLET"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodMobileMoney, PaymentMethodWallet:
		return PaymentMethod(s), true
	}
	return "", false
}

// 決済。1注文につき非終端は同時に1件まで。
// 非終端1件はorder_idの部分一意インデックスで担保する（同時開始はINSERTで弾く）。
// reference はゲートウェイ照合用（webhookと突き合わせる）。
type Payment struct {
	ID               int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID          int64         `gorm:"not null;index:uq_payments_order_active,unique,where:status = 'CREATED' OR status = 'PROCESSING'" json:"order_id"`
	Amount           int64         `gorm:"not null" json:"amount"`
	Currency         string        `gorm:"type:varchar(3);not null" json:"currency"`
	Method           PaymentMethod `gorm:"type:varchar(20);not null" json:"method"`
	Status           PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Reference        string        `gorm:"type:varchar(100);not null;uniqueIndex" json:"reference"`
	AuthorizationURL string        `gorm:"type:varchar(255)" json:"authorization_url"`
	GatewayResponse  string        `gorm:"type:text" json:"-"`
	PaidAt           *time.Time    `json:"paid_at"`
	CreatedAt        time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
