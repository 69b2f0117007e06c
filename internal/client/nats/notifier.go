package nats

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	"github.com/bitmercado/ms-orders/internal/logger"
	"github.com/bitmercado/ms-orders/internal/services/execution"
)

const subjectSaveEmailQueue = "save_email_queue"

// CoinInfoGetter supplies catalog data for notification payloads.
type CoinInfoGetter interface {
	CoinInfo(ctx context.Context, coin string) (models.CoinConfig, error)
}

// Notifier publishes fill notifications to the mailing queue.
// Publishes are fire-and-forget: failures are logged, never surfaced, and
// each dispatch is bounded by its own timeout.
type Notifier struct {
	conn    *nats.Conn
	catalog CoinInfoGetter
	timeout time.Duration
}

func NewNotifier(conn *nats.Conn, catalog CoinInfoGetter, timeout time.Duration) *Notifier {
	return &Notifier{
		conn:    conn,
		catalog: catalog,
		timeout: timeout,
	}
}

type emailQueueMessage struct {
	Type        string `json:"type"`
	UserID      int64  `json:"user_id"`
	Information string `json:"information"`
}

type orderExecutedInformation struct {
	Type          string `json:"type"`
	TypeUppercase string `json:"type_uppercase"`
	Amount        string `json:"amount"`
	Pair          string `json:"pair"`
	Symbol        string `json:"symbol"`
	Price         string `json:"price"`
	OrderID       string `json:"order_id"`
	Total         string `json:"total"`
	DateTime      string `json:"date_time"`
}

// OrderExecuted queues the "order executed" email for one fill leg.
func (n *Notifier) OrderExecuted(userID int64, notice execution.OrderExecutedNotice) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	symbol := ""
	if coin, err := n.catalog.CoinInfo(ctx, notice.Pair.Target()); err == nil {
		symbol = coin.CurrencySymbol
	}

	sideLabel := "compra"
	if notice.Side == models.SideSell {
		sideLabel = "venda"
	}

	information, err := json.Marshal(orderExecutedInformation{
		Type:          sideLabel,
		TypeUppercase: strings.ToUpper(sideLabel),
		Amount:        formatMoney(notice.Amount, 8),
		Pair:          strings.ToUpper(string(notice.Pair)),
		Symbol:        symbol,
		Price:         formatMoney(notice.Price, 2),
		OrderID:       notice.OrderIdentificator,
		Total:         formatMoney(notice.Total, 2),
		DateTime:      notice.TimeExecuted.Format("02/01/2006 15:04"),
	})
	if err != nil {
		logger.Warn(ctx, "order executed payload marshal failed", zap.Error(err))
		return
	}

	n.publish(ctx, subjectSaveEmailQueue, emailQueueMessage{
		Type:        "order_executed",
		UserID:      userID,
		Information: string(information),
	})
}

func (n *Notifier) publish(ctx context.Context, subject string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Warn(ctx, "notification marshal failed",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return
	}

	if err := n.conn.Publish(subject, body); err != nil {
		logger.Warn(ctx, "notification publish failed",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

// formatMoney renders a decimal in the pt-BR convention used by the email
// templates: thousands dots, comma decimals.
func formatMoney(value decimal.Decimal, places int32) string {
	fixed := value.StringFixed(places)

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	negative := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := strings.Join(groups, ".")
	if fracPart != "" {
		out += "," + fracPart
	}
	if negative {
		out = "-" + out
	}
	return out
}
