// cmd/predictor-api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"career-predictor/internal/api"
	"career-predictor/internal/audit"
	"career-predictor/internal/classifier"
	"career-predictor/internal/common/camunda"
	"career-predictor/internal/common/config"
	"career-predictor/internal/common/database"
	apperrors "career-predictor/internal/common/errors"
	"career-predictor/internal/common/logger"
	"career-predictor/internal/common/observability"
	"career-predictor/internal/predictor"

	pcc "career-predictor/internal/workers/prediction/predict-career-change"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	fs := pflag.NewFlagSet("predictor-api", pflag.ExitOnError)
	fs.String("config", "", "path to a config file (defaults to configs/config.yaml)")
	fs.String("model", "", "path to the model artifact")
	fs.Int("port", 0, "HTTP listen port")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.LoadWithFlags(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		zapLog.Fatal("predictor-api stopped with error", zap.Error(err))
	}
	log.Info("predictor-api stopped", nil)
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	log.Info("starting predictor-api", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
		"model":       cfg.Model.Path,
	})

	obs, err := observability.New(cfg.Observability.ServiceName)
	if err != nil {
		log.Warn("otel metrics disabled", map[string]interface{}{"error": err.Error()})
	}
	tracing, err := observability.NewTracing(cfg.Observability.JaegerEndpoint, cfg.Observability.SampleRatio)
	if err != nil {
		log.Warn("tracing disabled", map[string]interface{}{"error": err.Error()})
	}
	obs.AttachTracing(tracing)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	model, err := classifier.Load(cfg.Model.Path)
	if err != nil {
		return apperrors.NewModelLoadFailedError(cfg.Model.Path, err)
	}
	log.Info("model loaded", map[string]interface{}{
		"version":       model.Version(),
		"threshold":     model.Threshold(),
		"hasVocabulary": len(model.Vocabulary()) > 0,
	})

	// --- Cache ---
	var cache predictor.Cache
	if cfg.Cache.Enabled {
		var rdb *database.RedisClient
		err = retryWithBackoff(ctx, func() error {
			var err error
			rdb, err = database.ConnectRedis(ctx, cfg.Database.Redis)
			return err
		}, 5, time.Second, log, "Redis connection")
		if err != nil {
			return err
		}
		defer rdb.Close()
		cache = rdb
		log.Info("Redis connected successfully", nil)
	}

	// --- Audit sinks ---
	var sinks []audit.Sink
	if cfg.Audit.Postgres.Enabled {
		var sink *audit.PostgresSink
		err = retryWithBackoff(ctx, func() error {
			var err error
			sink, err = audit.OpenPostgresSink(ctx, cfg.Database.Postgres, cfg.Audit.Postgres.Table)
			return err
		}, 10, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			return err
		}
		defer sink.Close()
		sinks = append(sinks, sink)
		log.Info("PostgreSQL audit sink ready", map[string]interface{}{"table": cfg.Audit.Postgres.Table})
	}
	if cfg.Audit.Elasticsearch.Enabled {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(ctx, func() error {
			var err error
			if es, err = database.NewElasticsearch(cfg.Database.Elasticsearch); err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 10, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			return err
		}
		sinks = append(sinks, audit.NewElasticsearchSink(es.Client, cfg.Audit.Elasticsearch.Index))
		log.Info("Elasticsearch audit sink ready", map[string]interface{}{"index": cfg.Audit.Elasticsearch.Index})
	}
	var sink audit.Sink
	if len(sinks) > 0 {
		sink = audit.NewMulti(log, sinks...)
	}

	p, err := predictor.New(model, predictor.LoadConfig(cfg), cache, sink, obs, log)
	if err != nil {
		return err
	}
	log.Info("predictor ready", map[string]interface{}{"encodingMode": p.Info().EncodingMode})

	g, gctx := errgroup.WithContext(ctx)

	// --- Zeebe worker ---
	if config.IsWorkerEnabled(cfg, pcc.TaskType) {
		client, err := camunda.NewClientWithConfig(ctx, camunda.LoadClientConfig(cfg.Camunda))
		if err != nil {
			return err
		}
		defer client.Close()

		wcfg := pcc.LoadConfig(cfg)
		w := camunda.NewWorker(client.GetClient(), pcc.TaskType, wcfg.MaxJobsActive, wcfg.Timeout,
			pcc.NewHandler(wcfg, p, log), log)

		g.Go(func() error {
			<-gctx.Done()
			w.Stop()
			return nil
		})
	}

	// --- HTTP ---
	srv := api.NewServer(cfg.Server, cfg.Predictor.MaxBatchSize, p, log)

	g.Go(func() error {
		log.Info("http server listening", map[string]interface{}{"address": cfg.Server.Address()})
		if err := srv.Listen(cfg.Server.Address()); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
