// Package nats holds the request/reply clients for the collaborating
// services on the message bus.
package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/bitmercado/ms-orders/internal/config"
	serviceErrors "github.com/bitmercado/ms-orders/internal/errors/service"
	"github.com/bitmercado/ms-orders/internal/logger"
)

const (
	subjectGetUserBalance   = "get_user_balance"
	subjectBlockUserAccount = "block_user_account"
)

// AccountClient talks to the account service over request/reply. Balance
// reads go through a circuit breaker so a dead account service fails fast
// instead of stalling every placement.
type AccountClient struct {
	conn           *nats.Conn
	cfg            config.Config
	circuitBreaker *gobreaker.CircuitBreaker[decimal.Decimal]
}

type balanceRequest struct {
	UserID   int64  `json:"userId"`
	Currency string `json:"currency"`
}

type balanceResponse struct {
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

type blockRequest struct {
	UserID int64 `json:"userId"`
}

func NewAccountClient(conn *nats.Conn, cfg config.Config) *AccountClient {
	circuitBreaker := gobreaker.NewCircuitBreaker[decimal.Decimal](gobreaker.Settings{
		Name:        "accountService",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.MaxFailures
		},
	})

	return &AccountClient{
		conn:           conn,
		cfg:            cfg,
		circuitBreaker: circuitBreaker,
	}
}

// GetUserBalance asks the account service for the user's current balance in
// one currency.
func (c *AccountClient) GetUserBalance(ctx context.Context, userID int64, currency string) (decimal.Decimal, error) {
	const op = "nats.AccountClient.GetUserBalance"

	balance, err := c.circuitBreaker.Execute(func() (decimal.Decimal, error) {
		var response balanceResponse
		err := c.request(ctx, subjectGetUserBalance, balanceRequest{UserID: userID, Currency: currency}, &response)
		if err != nil {
			logger.Error(ctx, "get_user_balance failed", zap.Error(err))

			return decimal.Zero, err
		}
		return response.CurrentBalance, nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, c.asCollaborator(err))
	}

	return balance, nil
}

// BlockAccount asks the account service to freeze a user after a failed
// settlement. The freeze is advisory; callers decide whether to swallow.
func (c *AccountClient) BlockAccount(ctx context.Context, userID int64) error {
	const op = "nats.AccountClient.BlockAccount"

	var acked struct{}
	if err := c.request(ctx, subjectBlockUserAccount, blockRequest{UserID: userID}, &acked); err != nil {
		return fmt.Errorf("%s: %w", op, c.asCollaborator(err))
	}
	return nil
}

func (c *AccountClient) request(ctx context.Context, subject string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	msg, err := c.conn.RequestWithContext(ctx, subject, body)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}

	if err := decodeReply(msg.Data, out); err != nil {
		return fmt.Errorf("decode %s: %w", subject, err)
	}
	return nil
}

func (c *AccountClient) asCollaborator(err error) error {
	return &serviceErrors.CollaboratorError{Collaborator: "account", Err: err}
}

// decodeReply unwraps the bus reply convention: either the payload itself
// or {"success":false,"message":...} on rejection.
func decodeReply(data []byte, out any) error {
	var envelope struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil &&
		envelope.Success != nil && !*envelope.Success {
		return fmt.Errorf("rejected: %s", envelope.Message)
	}

	return json.Unmarshal(data, out)
}
