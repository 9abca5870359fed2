package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"civisync/internal/config"
	"civisync/internal/database"
	"civisync/internal/events"
	"civisync/internal/logger"
	"civisync/internal/services/civicrm"
	"civisync/internal/services/woocommerce"
	"civisync/internal/sync"
	"civisync/internal/worker/processors"

	"github.com/segmentio/kafka-go"
)

type Worker struct {
	config    *config.Config
	logger    *logger.Logger
	reader    *kafka.Reader
	processor *processors.EventProcessor
}

func New(cfg *config.Config, logger *logger.Logger, db *database.Database) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{cfg.KafkaBrokers},
		GroupID:        "civisync-worker",
		Topic:          events.Topic,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})

	crm := civicrm.NewClient(cfg.CiviBaseURL, cfg.CiviAPIKey, cfg.CiviSiteKey, logger)

	primary := woocommerce.NewClient(cfg.WooBaseURL, cfg.WooConsumerKey, cfg.WooConsumerSecret, logger)
	var orders *woocommerce.Client
	if cfg.WooOrdersBaseURL != "" {
		orders = woocommerce.NewClient(cfg.WooOrdersBaseURL, cfg.WooConsumerKey, cfg.WooConsumerSecret, logger)
	}
	stores := woocommerce.NewStores(primary, orders)

	engine := sync.NewEngine(cfg, logger, db, crm, stores)
	processor := processors.NewEventProcessor(cfg, logger, engine)

	return &Worker{
		config:    cfg,
		logger:    logger,
		reader:    reader,
		processor: processor,
	}
}

func (w *Worker) Start() {
	w.logger.Info("Worker started, listening for order events...")

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		message, err := w.reader.ReadMessage(ctx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.Error("Failed to read message: %v", err)
			continue
		}

		w.logger.Debug("Received message: %s", string(message.Value))

		var event events.OrderEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			w.logger.Error("Failed to parse event: %v", err)
			continue
		}

		if err := w.processor.Process(event); err != nil {
			w.logger.Error("Failed to process event: %v", err)
			continue
		}

		w.logger.Debug("Event processed successfully")
	}
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.reader.Close()
}
