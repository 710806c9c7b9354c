package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hetulpatel/sportsarb/internal/cache"
	"github.com/hetulpatel/sportsarb/internal/config"
	"github.com/hetulpatel/sportsarb/internal/httpclient"
	"github.com/hetulpatel/sportsarb/internal/kafka"
	"github.com/hetulpatel/sportsarb/internal/kalshi"
	"github.com/hetulpatel/sportsarb/internal/logging"
	"github.com/hetulpatel/sportsarb/internal/metrics"
	"github.com/hetulpatel/sportsarb/internal/pipeline"
	"github.com/hetulpatel/sportsarb/internal/polymarket"
	"github.com/hetulpatel/sportsarb/internal/queue"
	"github.com/hetulpatel/sportsarb/internal/sink"
	"github.com/hetulpatel/sportsarb/internal/snapshot"
	"github.com/hetulpatel/sportsarb/internal/storage/postgres"
	"github.com/hetulpatel/sportsarb/internal/storage/sqlite"
	"github.com/hetulpatel/sportsarb/internal/supabase"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logging.Fatalf("[sports-arb] load config: %v", err)
	}
	logging.Init(cfg.Logging())
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("[sports-arb] invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Serve(ctx, cfg.Metrics.Addr)

	sinks := sink.NewMulti(buildSinks(ctx, cfg)...)
	defer func() {
		if err := sinks.Close(); err != nil {
			logging.Errorf("[sports-arb] close sinks: %v", err)
		}
	}()
	if sinks.Len() == 0 {
		logging.Warnf("[sports-arb] no sinks configured; opportunities are only logged")
	}

	httpCfg := httpclient.Config{Retries: cfg.Fetch.Retries}
	if cfg.Fetch.Retries == 0 {
		httpCfg.Retries = -1
	}

	poly := polymarket.NewClient(polymarket.Config{
		GammaURL:    cfg.Polymarket.GammaURL,
		ClobURL:     cfg.Polymarket.ClobURL,
		EventURL:    cfg.Polymarket.EventURL,
		TagIDs:      cfg.PolymarketTags(),
		Window:      cfg.Polymarket.Window,
		Concurrency: cfg.Fetch.Concurrency,
		Timeout:     cfg.Fetch.Timeout,
		HTTP:        httpCfg,
		Observe:     metrics.FetchObserver("polymarket"),
	})
	kal := kalshi.NewClient(kalshi.Config{
		BaseURL:     cfg.Kalshi.BaseURL,
		Series:      cfg.KalshiSeries(),
		Concurrency: cfg.Kalshi.Concurrency,
		Timeout:     cfg.Fetch.Timeout,
		HTTP:        httpCfg,
		Observe:     metrics.FetchObserver("kalshi"),
	})

	opts := pipeline.Options{
		Polymarket: poly,
		Kalshi:     kal,
		Sinks:      sinks,
		Sports:     cfg.SportList(),
		Interval:   cfg.Poll.Interval,
		Once:       cfg.Once,
	}
	if cfg.Arb.MinProfitEnabled {
		floor := cfg.Arb.MinProfit
		opts.MinProfit = &floor
	}
	if cfg.Sinks.Snapshot.Enabled {
		opts.Entries = snapshot.NewWriter(cfg.Sinks.Snapshot.Dir)
	}

	logging.Infof("[sports-arb] scanning %v every %s with sinks %v", cfg.Sports, cfg.Poll.Interval, sinks.Names())
	if err := pipeline.New(opts).Run(ctx); err != nil && ctx.Err() == nil {
		logging.Errorf("[sports-arb] run: %v", err)
	}
}

// buildSinks opens every configured sink. A sink that cannot start is
// logged and left out.
func buildSinks(ctx context.Context, cfg *config.Config) []sink.Sink {
	var out []sink.Sink
	sc := cfg.Sinks

	if sc.SQLite.Enabled {
		store, err := sqlite.Open(sc.SQLite.Path)
		if err != nil {
			logging.Errorf("[sports-arb] sqlite sink: %v", err)
		} else {
			out = append(out, store)
		}
	}

	if sc.Postgres.DSN != "" {
		openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		store, err := postgres.Open(openCtx, postgres.Config{DSN: sc.Postgres.DSN, Table: sc.Postgres.Table})
		cancel()
		if err != nil {
			logging.Errorf("[sports-arb] postgres sink: %v", err)
		} else {
			out = append(out, store)
		}
	}

	if sc.Supabase.URL != "" {
		client, err := supabase.NewClient(supabase.Config{
			URL:        sc.Supabase.URL,
			ServiceKey: sc.Supabase.ServiceKey,
			Table:      sc.Supabase.Table,
		})
		if err != nil {
			logging.Errorf("[sports-arb] supabase sink: %v", err)
		} else {
			out = append(out, client)
		}
	}

	if sc.Redis.Addr != "" {
		c, err := cache.NewRedisOpportunityCache(sc.Redis.Addr, sc.Redis.Password, sc.Redis.DB, sc.Redis.TTL, sc.Redis.Prefix)
		if err != nil {
			logging.Errorf("[sports-arb] redis sink: %v", err)
		} else {
			out = append(out, c)
		}
	}

	if sc.Kafka.Brokers != "" {
		if pub, err := kafkaPublisher(ctx, sc.Kafka); err != nil {
			logging.Errorf("[sports-arb] kafka sink: %v", err)
		} else {
			out = append(out, pub)
		}
	}

	if sc.Snapshot.Enabled {
		out = append(out, snapshot.NewWriter(sc.Snapshot.Dir))
	}
	return out
}

func kafkaPublisher(ctx context.Context, kc config.KafkaConfig) (*queue.Publisher, error) {
	brokers := kafka.ParseBrokers(kc.Brokers)

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()
	addr, err := kafka.WaitForBroker(waitCtx, brokers)
	if err != nil {
		return nil, err
	}
	logging.Debugf("[sports-arb] kafka broker %s reachable", addr)

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	defer cancelEnsure()
	if err := kafka.EnsureTopic(ensureCtx, brokers, kafka.OpportunityTopic(kc.Topic)); err != nil {
		logging.Warnf("[sports-arb] ensure topic %s: %v", kc.Topic, err)
	}
	return queue.NewPublisher(kafka.NewWriter(brokers, kc.Topic)), nil
}
