package events

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/segmentio/kafka-go"
)

const producerName = "marketplace-api"

// 通知サービス向けのfire-and-forget発行。
// 送信失敗で業務処理を止めない（ログのみ）。
type Publisher struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewPublisher(brokers []string, topic string, buf int) *Publisher {
	return &Publisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Publisher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				// 残りを吐き切ってから閉じる
				for {
					select {
					case m := <-p.inbox:
						_ = p.w.WriteMessages(context.Background(), m)
					default:
						_ = p.w.Close()
						close(p.closeCh)
						return
					}
				}
			case m := <-p.inbox:
				if err := p.w.WriteMessages(context.Background(), m); err != nil {
					log.Warnf("publish %s failed: %v", string(m.Key), err)
				}
			}
		}
	}()
}

// OrderEvent はEnvelopeに包んで非同期発行する。inboxが詰まっていたら捨てる。
func (p *Publisher) OrderEvent(eventType string, orderID int64, payload any) {
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producerName,
		CorrelationID: strconv.FormatInt(orderID, 10),
		Payload:       MustMarshal(payload),
	}

	m := kafka.Message{
		Key:   []byte(env.CorrelationID),
		Value: MustMarshal(env),
		Time:  time.Now(),
	}

	select {
	case p.inbox <- m:
	default:
		log.Warnf("event inbox full, dropping %s for order %d", eventType, orderID)
	}
}

// Start側のフラッシュ完了を待つ
func (p *Publisher) WaitClosed() { <-p.closeCh }
