package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/hetulpatel/sportsarb/internal/arb"
)

const sportHeader = "sport"

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits one Kafka message per opportunity, keyed by match key.
type Publisher struct {
	writer MessageWriter
}

func NewPublisher(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer}
}

func (p *Publisher) Name() string {
	return "kafka"
}

func (p *Publisher) Publish(ctx context.Context, sport string, opps []arb.Opportunity) error {
	return PublishOpportunities(ctx, p.writer, sport, opps)
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func PublishOpportunities(ctx context.Context, writer MessageWriter, sport string, opps []arb.Opportunity) error {
	if writer == nil || len(opps) == 0 {
		return nil
	}
	msgs, err := buildMessages(sport, opps)
	if err != nil {
		return err
	}
	return writer.WriteMessages(ctx, msgs...)
}

func buildMessages(sport string, opps []arb.Opportunity) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(opps))
	for _, o := range opps {
		payload, err := json.Marshal(o)
		if err != nil {
			return nil, fmt.Errorf("marshal opportunity %s: %w", o.MatchKey, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(o.MatchKey),
			Value:   payload,
			Headers: []kafka.Header{{Key: sportHeader, Value: []byte(sport)}},
			Time:    o.DetectedAt,
		})
	}
	return msgs, nil
}

// DecodeOpportunity is the inverse of the message encoding used by Publisher.
func DecodeOpportunity(msg kafka.Message) (arb.Opportunity, error) {
	var o arb.Opportunity
	if err := json.Unmarshal(msg.Value, &o); err != nil {
		return arb.Opportunity{}, err
	}
	if o.Sport == "" {
		for _, h := range msg.Headers {
			if h.Key == sportHeader {
				o.Sport = string(h.Value)
			}
		}
	}
	return o, nil
}
