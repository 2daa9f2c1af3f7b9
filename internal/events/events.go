package events

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderPaid      = "OrderPaid"
	EventOrderFailed    = "OrderFailed"
	EventOrderCancelled = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`   // uuid
	EventType     string          `json:"event_type"` // 上のconstのいずれか
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"` // RFC3339
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload（通知サービス向け） ----

type ItemLine struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	SellerID  int64  `json:"seller_id"`
	Qty       int64  `json:"qty"`
	UnitPrice int64  `json:"unit_price"`
}

type OrderPlacedPayload struct {
	OrderID     int64      `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	BuyerID     int64      `json:"buyer_id"`
	Total       int64      `json:"total"`
	Items       []ItemLine `json:"items"`
}

type OrderPaidPayload struct {
	OrderID    int64  `json:"order_id"`
	PaymentID  int64  `json:"payment_id"`
	Reference  string `json:"reference"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

type OrderFailedPayload struct {
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

type OrderCancelledPayload struct {
	OrderID int64 `json:"order_id"`
}

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
