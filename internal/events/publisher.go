package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/riftlabs/interlock/internal/domain"
)

const (
	// DefaultStreamName is the Redis stream the audit fan-out writes to.
	DefaultStreamName = "interlock:audit-events"
	// MaxStreamLength caps the stream size via approximate trimming.
	MaxStreamLength = 10000
)

// AuditStreamPublisher fans out completed audit rows to a downstream
// consumer (SIEM, compliance pipeline) without participating in the
// business transaction (§4.11).
type AuditStreamPublisher interface {
	Publish(ctx context.Context, row *domain.AuditRow) error
	Close() error
}

// RedisAuditStreamPublisher publishes audit rows to a Redis Stream.
type RedisAuditStreamPublisher struct {
	client     *redis.Client
	streamName string
	logger     *zap.Logger
}

// NewRedisAuditStreamPublisher creates a new Redis-backed publisher.
func NewRedisAuditStreamPublisher(client *redis.Client, logger *zap.Logger) *RedisAuditStreamPublisher {
	return &RedisAuditStreamPublisher{
		client:     client,
		streamName: DefaultStreamName,
		logger:     logger,
	}
}

// WithStreamName overrides the default stream name.
func (p *RedisAuditStreamPublisher) WithStreamName(streamName string) *RedisAuditStreamPublisher {
	p.streamName = streamName
	return p
}

// Publish writes one audit row to the stream. Failures are the caller's to
// log-and-drop; this method only wraps the underlying Redis error with
// enough context to do that.
func (p *RedisAuditStreamPublisher) Publish(ctx context.Context, row *domain.AuditRow) error {
	if row == nil {
		return fmt.Errorf("audit row cannot be nil")
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	values := map[string]interface{}{
		"audit_id":       row.ID,
		"correlation_id": row.CorrelationID,
		"trace_id":       row.TraceID,
		"target_type":    row.TargetType,
		"method_key":     string(row.MethodKey),
		"status":         string(row.Status),
		"duration_ms":    row.DurationMs,
		"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
	}

	if row.ErrorMessage != "" {
		values["error_message"] = row.ErrorMessage
	}

	result := p.client.XAdd(publishCtx, &redis.XAddArgs{
		Stream: p.streamName,
		MaxLen: MaxStreamLength,
		Approx: true,
		Values: values,
	})

	if err := result.Err(); err != nil {
		p.logger.Error("failed to publish audit row to redis stream",
			zap.String("correlation_id", row.CorrelationID),
			zap.String("method_key", string(row.MethodKey)),
			zap.String("stream", p.streamName),
			zap.Error(err))
		return fmt.Errorf("failed to publish audit row: %w", err)
	}

	p.logger.Debug("audit row published to stream",
		zap.String("correlation_id", row.CorrelationID),
		zap.String("stream", p.streamName),
		zap.String("stream_id", result.Val()))

	return nil
}

// Close closes the underlying Redis connection.
func (p *RedisAuditStreamPublisher) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
