package nats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bitmercado/ms-orders/internal/logger"
)

// RequestID stamps every request with a trace id carried through the
// context logger.
func RequestID() Middleware {
	return func(subject string, next Handler) Handler {
		return func(ctx context.Context, data []byte) (any, error) {
			ctx = logger.ContextWithTraceID(ctx, uuid.NewString())
			return next(ctx, data)
		}
	}
}

// Recovery converts handler panics into internal errors so one bad
// request cannot take the subscription down.
func Recovery() Middleware {
	return func(subject string, next Handler) Handler {
		return func(ctx context.Context, data []byte) (reply any, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(ctx, "handler panicked",
						zap.String("subject", subject), zap.Any("panic", r))
					reply, err = nil, errInternal
				}
			}()
			return next(ctx, data)
		}
	}
}

// Logging reports every handled request with its outcome and duration.
func Logging() Middleware {
	return func(subject string, next Handler) Handler {
		return func(ctx context.Context, data []byte) (any, error) {
			start := time.Now()
			logger.Debug(ctx, "request received", zap.String("subject", subject))

			reply, err := next(ctx, data)

			fields := []zap.Field{
				zap.String("subject", subject),
				zap.Duration("duration", time.Since(start)),
			}
			switch {
			case err == nil:
				logger.Info(ctx, "request handled", fields...)
			case isRejection(err):
				logger.Info(ctx, "request rejected", append(fields, zap.Error(err))...)
			default:
				logger.Error(ctx, "request failed", append(fields, zap.Error(err))...)
			}
			return reply, err
		}
	}
}

// isRejection reports whether the error is an expected caller-facing
// rejection rather than an operational failure.
func isRejection(err error) bool {
	reply := rejectionFor(err)
	return reply.Code != codeInternal && reply.Code != codeSettlement
}
