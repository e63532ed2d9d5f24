package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher emits audit Events to a single Kafka topic, one dial per
// publish. Grounded on the teacher's kafka.Emit (kafka/main.go), kept
// to the same DialLeader/SetWriteDeadline/WriteMessages shape; the
// topic-mapping/consumer-group machinery around it in the teacher's
// kafka package existed to route *inbound* signing/redemption
// requests, which this stateless protocol has no use for (requests
// arrive over the framed socket, not Kafka), so only the outbound emit
// half is kept.
type Publisher struct {
	brokers []string
	topic   string
	timeout time.Duration
	log     zerolog.Logger
}

// NewPublisher builds a Publisher. If brokers is empty, Publish is a
// no-op — the audit stream is an optional ambient concern, not a
// dependency of command dispatch.
func NewPublisher(brokers []string, topic string, log zerolog.Logger) *Publisher {
	return &Publisher{brokers: brokers, topic: topic, timeout: 10 * time.Second, log: log}
}

// Publish fires ev at the configured topic in its own goroutine and
// never blocks the caller on Kafka availability.
func (p *Publisher) Publish(ev Event) {
	if len(p.brokers) == 0 {
		return
	}
	go p.publishSync(ev)
}

func (p *Publisher) publishSync(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	conn, err := kafkago.DialLeader(ctx, "tcp", p.brokers[0], p.topic, 0)
	if err != nil {
		p.log.Warn().Err(err).Str("topic", p.topic).Msg("audit: failed to dial kafka leader")
		return
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(p.timeout)); err != nil {
		p.log.Warn().Err(err).Msg("audit: failed to set write deadline")
		return
	}
	if _, err := conn.WriteMessages(kafkago.Message{Value: Encode(ev)}); err != nil {
		p.log.Warn().Err(err).Str("topic", p.topic).Msg("audit: failed to publish event")
	}
}
