package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaLog streams audit events to a Kafka topic. Appends are buffered on a
// channel and flushed in batches by a background goroutine, so event
// emission never blocks the matching path on the broker.
type KafkaLog struct {
	writer *kafka.Writer
	ch     chan Event
	done   chan struct{}
}

// NewKafkaLog creates a batching writer for the topic and starts its flush
// loop. Close must be called to drain the buffer on shutdown.
func NewKafkaLog(brokers []string, topic string) *KafkaLog {
	k := &KafkaLog{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		ch:   make(chan Event, 10_000),
		done: make(chan struct{}),
	}
	go k.run()
	return k
}

func (k *KafkaLog) Append(_ context.Context, e Event) {
	select {
	case k.ch <- e:
	default:
		// Buffer full: drop rather than stall the venue. The in-memory
		// log and metrics still see the event.
		slog.Warn("kafka event buffer full, dropping", "type", string(e.Type))
	}
}

func (k *KafkaLog) run() {
	batch := make([]kafka.Message, 0, 100)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := k.writer.WriteMessages(ctx, batch...); err != nil {
			slog.Error("kafka batch write failed", "err", err, "count", len(batch))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case e := <-k.ch:
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			batch = append(batch, kafka.Message{Key: []byte(e.Type), Value: data})
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-k.done:
			// Drain whatever is still buffered, then flush once.
			for {
				select {
				case e := <-k.ch:
					if data, err := json.Marshal(e); err == nil {
						batch = append(batch, kafka.Message{Key: []byte(e.Type), Value: data})
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close drains and stops the flush loop, then closes the writer.
func (k *KafkaLog) Close() error {
	close(k.done)
	return k.writer.Close()
}
