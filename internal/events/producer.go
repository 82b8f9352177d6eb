package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ridedash-backend/internal/models"
)

// RideEvent is one lifecycle event appended to the ride-events topic. The
// WebSocket broadcast is fire-and-forget with no replay; the Kafka log is
// the durable record for consumers that were not connected when it fired.
type RideEvent struct {
	Type      string      `json:"type"` // rideRequest, rideAccepted, rideDeclined, rideCompleted
	RideID    string      `json:"ride_id"`
	DriverID  string      `json:"driver_id,omitempty"`
	Ride      interface{} `json:"ride,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Producer{writer: w}
}

// Publish appends one event, keyed by ride id so a ride's events stay ordered
// within a partition.
func (p *Producer) Publish(eventType string, ride *models.Ride, driverID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	evt := RideEvent{
		Type:      eventType,
		RideID:    ride.ID,
		DriverID:  driverID,
		Ride:      ride,
		Timestamp: time.Now().Unix(),
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ride.ID), Value: b})
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
