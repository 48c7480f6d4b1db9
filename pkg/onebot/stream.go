package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"sendlater/internal/constants"
	"sendlater/pkg/onebot/types"
)

// EventHandler receives every event decoded from the stream. Handlers
// run on the read loop goroutine and should return quickly.
type EventHandler func(ctx context.Context, event *types.Event)

// StreamConfig configures a forward-WebSocket event subscription.
type StreamConfig struct {
	WSURL       string
	AccessToken string
}

// Stream maintains a WebSocket connection to the OneBot event endpoint
// and dispatches decoded events. It reconnects with exponential backoff
// until its context is cancelled.
type Stream struct {
	cfg     StreamConfig
	handler EventHandler
	logger  *logrus.Logger
}

func NewStream(cfg StreamConfig, handler EventHandler, logger *logrus.Logger) *Stream {
	return &Stream{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
	}
}

// Run blocks until ctx is cancelled, reconnecting on any read error.
func (s *Stream) Run(ctx context.Context) error {
	backoff := time.Second
	maxBackoff := time.Duration(constants.DefaultStreamReconnectMaxSec) * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.readLoop(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.WithError(err).WithField("retryIn", backoff).Warn("Event stream disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Stream) readLoop(ctx context.Context) error {
	opts := &websocket.DialOptions{}
	if s.cfg.AccessToken != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + s.cfg.AccessToken}}
	}

	conn, _, err := websocket.Dial(ctx, s.cfg.WSURL, opts)
	if err != nil {
		return fmt.Errorf("failed to dial event stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "closing")

	// OneBot event payloads can carry large forwarded content.
	conn.SetReadLimit(constants.StreamReadLimitBytes)

	s.logger.WithField("url", s.cfg.WSURL).Info("Event stream connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("event stream read failed: %w", err)
		}

		var event types.Event
		if err := json.Unmarshal(data, &event); err != nil {
			s.logger.WithError(err).Debug("Ignoring undecodable event frame")
			continue
		}

		s.handler(ctx, &event)
	}
}
