package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// ErrSkipMessage: обработчик отказался от сообщения навсегда, его нужно закоммитить и идти дальше.
var ErrSkipMessage = errors.New("skip message")

// Handler обрабатывает одно сообщение. nil или ошибка с ErrSkipMessage ведут к коммиту оффсета.
type Handler func(key, value []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r     messageReader
	topic string
}

// NewConsumer читает topic в составе группы groupID; новая группа начинает с самого раннего оффсета.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		StartOffset:       kafka.FirstOffset,
		MinBytes:          1,
		MaxBytes:          10 << 20,
		MaxWait:           500 * time.Millisecond,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return &Consumer{r: kafka.NewReader(cfg), topic: topic}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

func (c *Consumer) Close() error {
	return errors.Wrap(c.r.Close(), "close kafka reader")
}

// Consume reads messages until ctx is cancelled or the handler fails.
// Offsets are committed one by one after the handler returns, so a failed
// message is redelivered after restart.
func (c *Consumer) Consume(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrapf(err, "fetch message from %s", c.topic)
		}

		if err := handle(msg.Key, msg.Value); err != nil {
			if !errors.Is(err, ErrSkipMessage) {
				return errors.Wrapf(err, "handle %s/%d@%d", msg.Topic, msg.Partition, msg.Offset)
			}
			slog.Warn("kafka message skipped",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err.Error())
		}

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrapf(err, "commit %s/%d@%d", msg.Topic, msg.Partition, msg.Offset)
		}
	}
}
