package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ShadowTrade/internal/domain/models"
	domrepo "ShadowTrade/internal/domain/repository"
	sinkmetrics "ShadowTrade/internal/service/metrics"
	pkgkafka "ShadowTrade/pkg/kafka"
	"ShadowTrade/pkg/logger"
)

// RecordSinkHandler consumes public records from Kafka and writes them to
// the record store.
type RecordSinkHandler struct {
	topic   string
	store   domrepo.RecordStore
	metrics domrepo.Metrics
}

func NewRecordSinkHandler(topic string, store domrepo.RecordStore, metrics domrepo.Metrics) *RecordSinkHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	sinkmetrics.Register()
	return &RecordSinkHandler{topic: topic, store: store, metrics: metrics}
}

func (h *RecordSinkHandler) Topic() string { return h.topic }

// incoming message schema: models.PublicRecord, nothing else
func (h *RecordSinkHandler) Handle(ctx context.Context, b []byte) error {
	rec, err := decodePublicRecord(b)
	if err != nil {
		h.metrics.RecordError("sink_decode")
		return err
	}
	if sid := pkgkafka.SessionID(ctx); sid != "" && sid != rec.SessionID {
		h.metrics.RecordError("sink_session_mismatch")
		return fmt.Errorf("record for %s carried session header %s", rec.SessionID, sid)
	}

	start := time.Now()
	err = h.store.Save(ctx, rec)
	if err != nil {
		sinkmetrics.SinkLatency.WithLabelValues("error").Observe(time.Since(start).Seconds())
		h.metrics.RecordError("sink_store")
		return err
	}
	sinkmetrics.SinkLatency.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*RecordSinkHandler)(nil)

func decodePublicRecord(b []byte) (models.PublicRecord, error) {
	var rec models.PublicRecord
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return models.PublicRecord{}, fmt.Errorf("decode public record: %w", err)
	}
	if rec.SessionID == "" {
		return models.PublicRecord{}, fmt.Errorf("decode public record: missing session_id")
	}
	return rec, nil
}

// publicRecordFields is every key a public record may carry.
var publicRecordFields = map[string]struct{}{
	"session_id":   {},
	"symbol":       {},
	"total_return": {},
	"win_rate":     {},
	"max_drawdown": {},
	"total_trades": {},
	"timestamp":    {},
}

// PrivacyHook rejects any message carrying a key outside the public record
// schema before a handler sees it, so it goes to the DLQ without retries.
// It also lifts the session header into the context.
func PrivacyHook(l *logger.Logger) pkgkafka.ConsumerHook {
	sinkmetrics.Register()
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, km kafka.Message) (context.Context, error) {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(km.Value, &fields); err != nil {
				sinkmetrics.SinkRejected.WithLabelValues("malformed").Inc()
				return ctx, &pkgkafka.HookError{Code: "malformed", Err: err}
			}
			for k := range fields {
				if _, ok := publicRecordFields[k]; !ok {
					sinkmetrics.SinkRejected.WithLabelValues("private_field").Inc()
					l.Error("non-public field on records topic",
						logger.String("topic", km.Topic),
						logger.Int64("offset", km.Offset),
						logger.String("field", k),
					)
					return ctx, &pkgkafka.HookError{Code: "private_field", Err: fmt.Errorf("field %q", k)}
				}
			}
			return pkgkafka.WithSessionID(ctx, pkgkafka.SessionIDFromHeaders(km)), nil
		},
	}
}
