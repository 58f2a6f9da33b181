package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 10*time.Millisecond, 80*time.Millisecond
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %v out of (0, %v]", attempt, d, max)
		}
	}
}

func TestSessionIDFromHeaders(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{
		{Key: "other", Value: []byte("x")},
		{Key: SessionHeader, Value: []byte("sess-1")},
	}}
	if got := SessionIDFromHeaders(msg); got != "sess-1" {
		t.Fatalf("session = %q", got)
	}

	ctx := WithSessionID(context.Background(), "sess-1")
	if got := SessionID(ctx); got != "sess-1" {
		t.Fatalf("ctx session = %q", got)
	}
	if got := SessionID(context.Background()); got != "" {
		t.Fatalf("empty ctx session = %q", got)
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestParseCompressionDefaultsToGzip(t *testing.T) {
	if parseCompression("bogus") != kafka.Gzip {
		t.Fatal("unknown compression should fall back to gzip")
	}
	if parseCompression("zstd") != kafka.Zstd {
		t.Fatal("zstd not mapped")
	}
}
