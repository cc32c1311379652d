package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/order-dispatch/internal/models"
)

// KafkaProducer publishes dispatch events for downstream consumers (the
// analytics mirror, the admin console feed).
type KafkaProducer struct {
	status    *kafka.Writer
	locations *kafka.Writer
}

func NewKafkaProducer(brokers []string, statusTopic, locationTopic string) *KafkaProducer {
	return &KafkaProducer{
		status:    kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: statusTopic, Balancer: &kafka.LeastBytes{}}),
		locations: kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: locationTopic, Balancer: &kafka.LeastBytes{}}),
	}
}

// PublishStatus mirrors one status-history entry onto the topic, keyed by
// order so per-order entries stay in partition order.
func (k *KafkaProducer) PublishStatus(e models.StatusHistoryEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return k.status.WriteMessages(ctx, kafka.Message{Key: []byte(e.OrderID), Value: b})
}

// PublishLocation emits one courier position, keyed by driver.
func (k *KafkaProducer) PublishLocation(driverID string, loc models.Coord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := json.Marshal(models.LocationEvent{Type: models.EvDriverLocation, DriverID: driverID, Location: loc})
	if err != nil {
		return err
	}
	return k.locations.WriteMessages(ctx, kafka.Message{Key: []byte(driverID), Value: b})
}

func (k *KafkaProducer) Close() error {
	var errs []error
	for _, w := range []*kafka.Writer{k.status, k.locations} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
