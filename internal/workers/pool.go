package workers

import (
	"context"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/hetulpatel/sportsarb/internal/arb"
	"github.com/hetulpatel/sportsarb/internal/kafka"
	"github.com/hetulpatel/sportsarb/internal/logging"
	"github.com/hetulpatel/sportsarb/internal/queue"
)

type Handler func(context.Context, *arb.Opportunity) error

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

func Run(ctx context.Context, brokers []string, topic, group string, workerCount int, handler Handler) {
	RunWith(ctx, workerCount, func() MessageReader {
		return kafka.NewReader(brokers, topic, group)
	}, handler)
}

// RunWith starts workerCount consumers, each with its own reader, and blocks
// until ctx is cancelled.
func RunWith(ctx context.Context, workerCount int, newReader func() MessageReader, handler Handler) {
	if workerCount <= 0 {
		workerCount = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			reader := newReader()
			defer reader.Close()
			consume(ctx, id, reader, handler)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
}

func consume(ctx context.Context, id int, reader MessageReader, handler Handler) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Errorf("[worker %d] read error: %v", id, err)
			continue
		}

		opp, err := queue.DecodeOpportunity(msg)
		if err != nil {
			logging.Errorf("[worker %d] unmarshal error: %v", id, err)
			continue
		}

		if handler != nil {
			if err := handler(ctx, &opp); err != nil {
				logging.Errorf("[worker %d] handler error: %v", id, err)
			}
		}
	}
}
