package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/tile-duel/internal/config"
	"github.com/tile-duel/internal/domain"
)

// ProgressHandler applies board-sync updates to matches
type ProgressHandler interface {
	RecordProgress(ctx context.Context, matchID string, upd domain.ProgressUpdate) error
}

// ProgressEvent is the wire format for board-sync events: unauthenticated
// board state addressed by slot, produced by viewer tabs and simulators.
type ProgressEvent struct {
	MatchID       string `json:"match_id"`
	PlayerNumber  int    `json:"player_number"`
	Board         []int  `json:"board"`
	LastCorrectAt *int64 `json:"last_correct_at,omitempty"`
}

// Consumer consumes board-sync events from Kafka and feeds them to the
// engine as sync-only progress updates.
type Consumer struct {
	config        *config.KafkaConfig
	handler       ProgressHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler ProgressHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if err == sarama.ErrClosedConsumerGroup {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	<-c.ready
	c.logger.Info("Kafka consumer ready")

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a topic partition
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	logger := h.consumer.logger

	for {
		select {
		case <-session.Context().Done():
			return nil

		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			var event ProgressEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				logger.Warn("failed to unmarshal message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			if event.MatchID == "" || (event.PlayerNumber != domain.SlotP1 && event.PlayerNumber != domain.SlotP2) {
				logger.Warn("invalid progress event",
					"match_id", event.MatchID,
					"player_number", event.PlayerNumber,
				)
				session.MarkMessage(message, "")
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := h.consumer.handler.RecordProgress(ctx, event.MatchID, domain.ProgressUpdate{
				PlayerNumber:  event.PlayerNumber,
				SyncOnly:      true,
				Board:         event.Board,
				LastCorrectAt: event.LastCorrectAt,
			})
			cancel()

			switch {
			case err == nil:
				logger.Debug("applied sync event", "match_id", event.MatchID, "slot", event.PlayerNumber)
			case errors.Is(err, domain.ErrRateLimited),
				errors.Is(err, domain.ErrMatchDone),
				errors.Is(err, domain.ErrMatchNotFound):
				// Stale or throttled events are expected at this rate; drop them.
				logger.Debug("dropped sync event", "match_id", event.MatchID, "reason", err)
			default:
				logger.Error("failed to apply sync event", "match_id", event.MatchID, "error", err)
			}

			session.MarkMessage(message, "")
		}
	}
}
