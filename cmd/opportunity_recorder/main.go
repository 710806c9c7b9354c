package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/hetulpatel/sportsarb/internal/arb"
	"github.com/hetulpatel/sportsarb/internal/kafka"
	"github.com/hetulpatel/sportsarb/internal/logging"
	"github.com/hetulpatel/sportsarb/internal/storage/sqlite"
	"github.com/hetulpatel/sportsarb/internal/workers"
)

// opportunity_recorder consumes published opportunities and appends each
// one to the SQLite history table.
func main() {
	logging.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	brokers := kafka.Brokers()
	topic := kafka.TopicFromEnv("OPPORTUNITIES_KAFKA_TOPIC", kafka.DefaultOpportunityTopic)
	group := envString("RECORDER_GROUP", "opportunity-recorder")
	workerCount := envInt("RECORDER_WORKERS", 2)

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if _, err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		logging.Fatalf("[recorder] wait for broker: %v", err)
	}
	cancel()

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopic(ensureCtx, brokers, kafka.OpportunityTopic(topic)); err != nil {
		logging.Warnf("[recorder] ensure topic warning: %v", err)
	}
	cancelEnsure()

	store, err := sqlite.Open(os.Getenv("SQLITE_PATH"))
	if err != nil {
		logging.Fatalf("[recorder] open sqlite: %v", err)
	}
	defer store.Close()

	logging.Infof("[recorder] consuming %s with group %s (%d workers)", topic, group, workerCount)
	workers.Run(ctx, brokers, topic, group, workerCount, func(ctx context.Context, o *arb.Opportunity) error {
		if err := store.RecordOpportunity(ctx, *o); err != nil {
			return err
		}
		logging.Debugf("[recorder] %s %s profit=%.4f", o.Sport, o.Question, o.Profit)
		return nil
	})
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
