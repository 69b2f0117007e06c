// Package nats exposes the service over NATS request/reply. Every command
// is a queue subscription; replies are JSON documents shaped for the
// gateway, failures reply a {"success":false} rejection instead of erroring
// the subscription.
package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/bitmercado/ms-orders/internal/logger"
)

// Handler decodes one request payload and produces the reply body.
type Handler func(ctx context.Context, data []byte) (any, error)

// Middleware wraps a Handler, seeing the subject it serves.
type Middleware func(subject string, next Handler) Handler

type Server struct {
	conn       *nats.Conn
	queue      string
	middleware []Middleware
	handlers   map[string]Handler
	subs       []*nats.Subscription
}

func NewServer(conn *nats.Conn, queue string, middleware ...Middleware) *Server {
	return &Server{
		conn:       conn,
		queue:      queue,
		middleware: middleware,
		handlers:   make(map[string]Handler),
	}
}

// Handle registers a handler for one subject. Must be called before Start.
func (s *Server) Handle(subject string, h Handler) {
	s.handlers[subject] = h
}

// Start subscribes every registered subject on the server's queue group.
func (s *Server) Start() error {
	const op = "nats.Server.Start"

	for subject, handler := range s.handlers {
		wrapped := handler
		for i := len(s.middleware) - 1; i >= 0; i-- {
			wrapped = s.middleware[i](subject, wrapped)
		}

		sub, err := s.conn.QueueSubscribe(subject, s.queue, s.dispatch(subject, wrapped))
		if err != nil {
			return fmt.Errorf("%s: subscribe %s: %w", op, subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

func (s *Server) dispatch(subject string, handler Handler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		ctx := context.Background()

		reply, err := handler(ctx, msg.Data)
		if err != nil {
			reply = rejectionFor(err)
		}

		if msg.Reply == "" {
			return
		}

		body, err := json.Marshal(reply)
		if err != nil {
			logger.Error(ctx, "failed to encode reply",
				zap.String("subject", subject), zap.Error(err))
			return
		}
		if err := msg.Respond(body); err != nil {
			logger.Error(ctx, "failed to send reply",
				zap.String("subject", subject), zap.Error(err))
		}
	}
}

// Close drains the subscriptions, letting in-flight handlers finish.
func (s *Server) Close() error {
	const op = "nats.Server.Close"

	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}
