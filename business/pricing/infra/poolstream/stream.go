// Package poolstream subscribes to pool reserve updates over WebSocket.
//
// The stream never mutates the live graph. Every relevant event marks the
// graph cache stale so the next read rebuilds from a fresh snapshot.
package poolstream

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/r0zar/amm-price-engine/internal/logger"
	"github.com/r0zar/amm-price-engine/internal/wsconn"
)

const tracerName = "business/pricing/infra/poolstream"

// Staler receives staleness notifications. Satisfied by the graph cache.
type Staler interface {
	MarkStale()
}

// Config holds stream subscription settings.
type Config struct {
	URL      string
	Protocol string
}

// Stream maintains the reserve-update subscription.
type Stream struct {
	config Config
	conn   *wsconn.Client
	staler Staler
	logger logger.LoggerInterface
	tracer trace.Tracer

	eventCounter metric.Int64Counter
}

type subscribeRequest struct {
	Op       string `json:"op"`
	Channel  string `json:"channel"`
	Protocol string `json:"protocol,omitempty"`
}

type reserveEvent struct {
	Type     string `json:"type"`
	PoolID   string `json:"poolId"`
	Protocol string `json:"protocol"`
}

// New creates a reserve-update stream. Connect must be called separately.
func New(cfg Config, staler Staler, log logger.LoggerInterface) (*Stream, error) {
	conn, err := wsconn.New(wsconn.DefaultConfig(cfg.URL, "poolstream"))
	if err != nil {
		return nil, err
	}

	meter := otel.Meter(tracerName)
	eventCounter, _ := meter.Int64Counter("poolstream_events_total",
		metric.WithDescription("Reserve update events received"))

	s := &Stream{
		config:       cfg,
		conn:         conn,
		staler:       staler,
		logger:       log,
		tracer:       otel.Tracer(tracerName),
		eventCounter: eventCounter,
	}

	conn.OnMessage(s.handleMessage)
	conn.OnStateChange(func(state wsconn.State, err error) {
		if err != nil {
			log.Warn(context.Background(), "pool stream state change",
				"state", string(state), "error", err)
			return
		}
		log.Debug(context.Background(), "pool stream state change", "state", string(state))
	})

	return s, nil
}

// Connect establishes the connection and subscribes to reserve updates.
func (s *Stream) Connect(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "poolstream.connect")
	defer span.End()

	if err := s.conn.Connect(ctx); err != nil {
		return err
	}

	return s.conn.SendJSON(ctx, subscribeRequest{
		Op:       "subscribe",
		Channel:  "reserves",
		Protocol: s.config.Protocol,
	})
}

// IsConnected reports whether the underlying connection is up.
func (s *Stream) IsConnected() bool {
	return s.conn.IsConnected()
}

// Close shuts the stream down.
func (s *Stream) Close() error {
	return s.conn.Close()
}

func (s *Stream) handleMessage(ctx context.Context, data []byte) {
	var event reserveEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Debug(ctx, "unparseable stream message", "error", err)
		return
	}

	switch event.Type {
	case "reserves_update", "pool_added", "pool_removed":
	default:
		// Acks, heartbeats and unknown event types carry no reserve change.
		return
	}

	if s.config.Protocol != "" && event.Protocol != "" && event.Protocol != s.config.Protocol {
		return
	}

	s.eventCounter.Add(ctx, 1)
	s.logger.Debug(ctx, "reserve update received", "type", event.Type, "poolId", event.PoolID)
	s.staler.MarkStale()
}
