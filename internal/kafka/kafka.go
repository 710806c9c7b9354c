package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hetulpatel/sportsarb/internal/logging"
)

const (
	DefaultBroker           = "kafka-broker:9092"
	DefaultOpportunityTopic = "opportunities.sports"
)

// Brokers reads KAFKA_BROKERS, falling back to the compose broker.
func Brokers() []string {
	return ParseBrokers(os.Getenv("KAFKA_BROKERS"))
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultBroker
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func TopicFromEnv(envKey, fallback string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return fallback
}

// TopicSpec describes a topic to create when missing.
type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
}

// OpportunityTopic is the layout of the opportunities topic. Messages are
// keyed by match key, so partitions only bound consumer parallelism.
func OpportunityTopic(name string) TopicSpec {
	if name == "" {
		name = DefaultOpportunityTopic
	}
	return TopicSpec{Name: name, Partitions: 3, ReplicationFactor: 1}
}

// WaitForBroker polls the brokers in turn until one accepts a connection and
// returns its address.
func WaitForBroker(ctx context.Context, brokers []string) (string, error) {
	if len(brokers) == 0 {
		return "", errNoBrokers
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastErr error
	for attempt := 0; ; attempt++ {
		addr := brokers[attempt%len(brokers)]
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			return addr, nil
		}
		lastErr = fmt.Errorf("%s: %w", addr, err)
		logging.Debugf("[kafka] broker %s not ready: %v", addr, err)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for broker: %w (last error: %v)", ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}

var errNoBrokers = errors.New("no brokers configured")

// EnsureTopic creates spec through the cluster controller. An existing topic
// is not an error.
func EnsureTopic(ctx context.Context, brokers []string, spec TopicSpec) error {
	if len(brokers) == 0 {
		return errNoBrokers
	}
	if spec.Name == "" {
		return errors.New("topic name is required")
	}

	conn, err := dialAny(ctx, brokers)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get controller: %w", err)
	}

	ctrlConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer ctrlConn.Close()

	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     max(spec.Partitions, 1),
		ReplicationFactor: max(spec.ReplicationFactor, 1),
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", spec.Name, err)
	}
	return nil
}

func dialAny(ctx context.Context, brokers []string) (*kafka.Conn, error) {
	var errs []error
	for _, addr := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, fmt.Errorf("dial %s: %w", addr, err))
	}
	return nil, errors.Join(errs...)
}

// NewWriter hashes on message key so one match always lands on one partition.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// NewReader joins group on topic. Opportunity payloads are small, so fetches
// are capped at 1 MiB; reader errors go to the process logger.
func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        group,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
		ErrorLogger: kafka.LoggerFunc(func(format string, args ...interface{}) {
			logging.Errorf("[kafka] reader "+format, args...)
		}),
	})
}
