package bootstrap

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pretzelai/email-use/adapter/in/worker"
	"github.com/pretzelai/email-use/adapter/out/messaging"
	"github.com/pretzelai/email-use/config"
	"github.com/pretzelai/email-use/pkg/logger"
)

type Worker struct {
	pool      *worker.Pool
	consumer  *messaging.Consumer
	scheduler *worker.SweepScheduler
	deps      *Dependencies

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	zlog   zerolog.Logger
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "worker").Logger()

	handler := worker.NewHandler(deps.DiscoveryService, deps.Processor)

	poolConfig := worker.DefaultPoolConfig()
	if cfg.WorkerCount > 0 {
		poolConfig.Workers = cfg.WorkerCount
	}
	if cfg.WorkerBatchSize > 0 {
		poolConfig.BatchSize = cfg.WorkerBatchSize
	}
	if cfg.WorkerRetries > 0 {
		poolConfig.MaxRetries = cfg.WorkerRetries
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		pool:   worker.NewPool(handler, poolConfig, zlog),
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		zlog:   zlog,
	}

	w.consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
		Group:    cfg.ConsumerGroup,
		Consumer: cfg.WorkerID,
		Streams: []string{
			messaging.StreamDiscovery,
			messaging.StreamEmailProcess,
		},
		Handler:              worker.NewStreamHandler(w.pool),
		Logger:               zlog,
		MaxRetries:           cfg.ConsumerMaxRetries,
		PendingCheckInterval: time.Duration(cfg.ConsumerPendingCheckSec) * time.Second,
	})

	if cfg.SchedulerEnabled {
		w.scheduler = worker.NewSweepScheduler(deps.DiscoveryService, cfg.SweepInterval)
	} else {
		logger.Info("Sweep scheduler disabled, discovery runs on manual trigger only")
	}

	return w, cleanup, nil
}

// Start runs the pool, the stream consumer, and the sweep scheduler,
// then blocks until Stop is called.
func (w *Worker) Start() {
	w.pool.Start()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Run(w.ctx); err != nil && err != context.Canceled {
			w.zlog.Error().Err(err).Msg("stream consumer error")
		}
	}()

	if w.scheduler != nil {
		w.scheduler.Start()
	}

	<-w.ctx.Done()
}

func (w *Worker) Stop() {
	w.cancel()
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
	w.pool.Stop()
	w.wg.Wait()
}

// Submit hands a job directly to the pool, bypassing Redis Streams.
func (w *Worker) Submit(msg *worker.Message) bool {
	return w.pool.Submit(msg)
}

func (w *Worker) GetMetrics() worker.PoolMetrics {
	return w.pool.GetMetrics()
}
