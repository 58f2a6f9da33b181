package repository

import (
	"context"

	"github.com/segmentio/kafka-go"

	"ShadowTrade/internal/domain/models"
	domrepo "ShadowTrade/internal/domain/repository"
	pkgkafka "ShadowTrade/pkg/kafka"
)

// KafkaRecordPublisher ships public records and signals to Kafka, keyed and
// headed by session id.
type KafkaRecordPublisher struct {
	producer     *pkgkafka.Producer
	recordsTopic string
	signalsTopic string
}

// NewKafkaRecordPublisher creates Kafka publisher.
func NewKafkaRecordPublisher(producer *pkgkafka.Producer, recordsTopic, signalsTopic string) *KafkaRecordPublisher {
	return &KafkaRecordPublisher{producer: producer, recordsTopic: recordsTopic, signalsTopic: signalsTopic}
}

var _ domrepo.RecordPublisher = (*KafkaRecordPublisher)(nil)

func (p *KafkaRecordPublisher) PublishRecord(ctx context.Context, r models.PublicRecord) error {
	return p.producer.Publish(ctx, p.recordsTopic, []byte(r.SessionID), r, sessionHeader(r.SessionID))
}

func (p *KafkaRecordPublisher) PublishSignal(ctx context.Context, s models.PublicSignal) error {
	return p.producer.Publish(ctx, p.signalsTopic, []byte(s.SessionID), s, sessionHeader(s.SessionID))
}

func (p *KafkaRecordPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func sessionHeader(id string) kafka.Header {
	return kafka.Header{Key: pkgkafka.SessionHeader, Value: []byte(id)}
}
