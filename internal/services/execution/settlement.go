package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	repositoryErrors "github.com/bitmercado/ms-orders/internal/errors/repository"
	"github.com/bitmercado/ms-orders/internal/logger"
	"github.com/bitmercado/ms-orders/internal/metrics"
)

var (
	errIncomingLocked  = errors.New("incoming order is locked")
	errCandidateLocked = errors.New("candidate order is locked")

	hundred = decimal.NewFromInt(100)
)

// executeStep settles one fill between the incoming order and a single
// compatible counter-order. Both orders are locked for the duration of the
// step; the fill, the trade, the ledger entries and both order updates land
// in one transaction. On commit failure the orders stay locked and the
// failure propagates for the freeze path.
func (s *Service) executeStep(ctx context.Context, incoming, candidate *models.Order) error {
	const op = "execution.Service.executeStep"

	if err := s.orders.Lock(ctx, incoming.ID); err != nil {
		if errors.Is(err, repositoryErrors.ErrOrderLocked) {
			return errIncomingLocked
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.orders.Lock(ctx, candidate.ID); err != nil {
		if unlockErr := s.orders.Unlock(ctx, incoming.ID); unlockErr != nil {
			logger.Warn(ctx, "failed to release incoming order lock",
				zap.Int64("order_id", incoming.ID),
				zap.Error(unlockErr),
			)
		}
		if errors.Is(err, repositoryErrors.ErrOrderLocked) {
			return errCandidateLocked
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	fill := decimal.Min(incoming.Amount, candidate.Amount)

	divisor, err := s.prices.Divisor(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var sellLeg *models.Order
	if incoming.Side == models.SideSell {
		sellLeg = incoming
	} else {
		sellLeg = candidate
	}

	priceDone := sellLeg.PriceUnity.Div(divisor).Round(s.cfg.QuoteDecimals)
	totalDone := fill.Mul(priceDone).Round(s.cfg.QuoteDecimals)

	// Price-time priority means the lower id rested first; that leg is the
	// maker of this step.
	makerIsIncoming := incoming.ID < candidate.ID

	feePctIncoming, err := s.fees.Resolve(ctx, *incoming, makerIsIncoming)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	feePctCandidate, err := s.fees.Resolve(ctx, *candidate, !makerIsIncoming)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	feeIncoming := s.feeAmount(incoming.Side, fill, totalDone, feePctIncoming)
	feeCandidate := s.feeAmount(candidate.Side, fill, totalDone, feePctCandidate)

	userIncoming, err := s.users.GetByID(ctx, incoming.UserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	userCandidate, err := s.users.GetByID(ctx, candidate.UserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	executedAt := s.now()

	batch := s.buildBatch(incoming, candidate, stepInput{
		fill:         fill,
		priceDone:    priceDone,
		totalDone:    totalDone,
		feeIncoming:  feeIncoming,
		feeCandidate: feeCandidate,
		uidIncoming:  userIncoming.UID,
		uidCandidate: userCandidate.UID,
		executionID:  uuid.NewString(),
		executedAt:   executedAt,
	})

	incomingExecID, candidateExecID, err := s.settlement.Commit(ctx, batch)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.applyStep(incoming, fill, priceDone, executedAt)
	s.applyStep(candidate, fill, priceDone, executedAt)

	if incoming.Side == models.SideBuy && incoming.Done {
		if err := s.reconciler.ReconcileBuy(ctx, *incoming); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if candidate.Side == models.SideBuy && candidate.Done {
		if err := s.reconciler.ReconcileBuy(ctx, *candidate); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.orders.Unlock(ctx, incoming.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.orders.Unlock(ctx, candidate.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.SettlementSteps.Inc()

	s.notifyFill(ctx, *incoming, fill, priceDone, totalDone, executedAt)
	s.notifyFill(ctx, *candidate, fill, priceDone, totalDone, executedAt)

	// When both parties are internal the incoming side's fill wins the
	// bridge slot.
	var bridgeExecID int64
	if userCandidate.InternalAccount {
		bridgeExecID = candidateExecID
	}
	if userIncoming.InternalAccount {
		bridgeExecID = incomingExecID
	}
	if bridgeExecID != 0 {
		if err := s.bridge.Insert(ctx, bridgeExecID, incoming.Pair, executedAt); err != nil {
			logger.Warn(ctx, "bridge order insert failed",
				zap.Int64("executed_id", bridgeExecID),
				zap.Error(err),
			)
		}
	}

	return nil
}

type stepInput struct {
	fill         decimal.Decimal
	priceDone    decimal.Decimal
	totalDone    decimal.Decimal
	feeIncoming  decimal.Decimal
	feeCandidate decimal.Decimal
	uidIncoming  string
	uidCandidate string
	executionID  string
	executedAt   time.Time
}

// buildBatch assembles the fill records, the trade, and the eight ledger
// entries of one settlement step.
func (s *Service) buildBatch(incoming, candidate *models.Order, in stepInput) models.SettlementBatch {
	amountLeftIncoming := incoming.Amount.Sub(in.fill).Round(s.cfg.AmountDecimals)
	amountLeftCandidate := candidate.Amount.Sub(in.fill).Round(s.cfg.AmountDecimals)

	execIncoming := models.ExecutedOrder{
		Identificator:  uuid.NewString(),
		ExecutionID:    in.executionID,
		OrderID:        incoming.ID,
		UserID:         incoming.UserID,
		IntDone:        incoming.AmountSource.Equal(in.fill),
		Side:           incoming.Side,
		Pair:           incoming.Pair,
		PriceUnity:     in.priceDone,
		OrderAmount:    incoming.AmountSource,
		AmountExecuted: in.fill,
		AmountLeft:     amountLeftIncoming,
		Fee:            in.feeIncoming,
		Total:          in.totalDone,
		TimeExecuted:   in.executedAt,
	}
	execCandidate := models.ExecutedOrder{
		Identificator:  uuid.NewString(),
		ExecutionID:    in.executionID,
		OrderID:        candidate.ID,
		UserID:         candidate.UserID,
		IntDone:        candidate.AmountSource.Equal(in.fill),
		Side:           candidate.Side,
		Pair:           candidate.Pair,
		PriceUnity:     in.priceDone,
		OrderAmount:    candidate.AmountSource,
		AmountExecuted: in.fill,
		AmountLeft:     amountLeftCandidate,
		Fee:            in.feeCandidate,
		Total:          in.totalDone,
		TimeExecuted:   in.executedAt,
	}

	// The tape records the incoming order's limit price, not the step's
	// settlement price.
	trade := models.Trade{
		Identificator:     uuid.NewString(),
		ExecutionID:       in.executionID,
		OrderID:           incoming.ID,
		OrderCompatibleID: candidate.ID,
		UserIDActive:      in.uidIncoming,
		UserIDPassive:     in.uidCandidate,
		Side:              incoming.Side,
		Pair:              incoming.Pair,
		AmountExecuted:    in.fill,
		PriceUnity:        incoming.PriceUnity,
		TimeExecuted:      in.executedAt,
	}

	entries := make([]models.LedgerEntry, 0, 8)
	entries = append(entries, s.legEntries(*incoming, in.fill, in.totalDone, in.feeIncoming, in.executedAt)...)
	entries = append(entries, s.legEntries(*candidate, in.fill, in.totalDone, in.feeCandidate, in.executedAt)...)

	doneIncoming := amountLeftIncoming.IsZero()
	doneCandidate := amountLeftCandidate.IsZero()

	return models.SettlementBatch{
		ExecIncoming:   execIncoming,
		ExecCompatible: execCandidate,
		Trade:          trade,
		Entries:        entries,
		UpdateIncoming: models.OrderUpdate{
			OrderID:   incoming.ID,
			Amount:    amountLeftIncoming,
			Done:      doneIncoming,
			PriceDone: in.priceDone,
			TimeDone:  doneTime(doneIncoming, in.executedAt),
		},
		UpdateCompatible: models.OrderUpdate{
			OrderID:   candidate.ID,
			Amount:    amountLeftCandidate,
			Done:      doneCandidate,
			PriceDone: in.priceDone,
			TimeDone:  doneTime(doneCandidate, in.executedAt),
		},
	}
}

// feeAmount converts a resolved fee percentage into the charged amount.
// Buyers pay in the target asset off the filled quantity; sellers pay in
// the quote asset off the settled value.
func (s *Service) feeAmount(side models.Side, fill, totalDone, percent decimal.Decimal) decimal.Decimal {
	if side == models.SideBuy {
		return fill.Mul(percent).Div(hundred).Round(s.cfg.AmountDecimals)
	}
	return totalDone.Mul(percent).Div(hundred).Round(s.cfg.QuoteDecimals)
}

// legEntries builds the four ledger entries owed to one side of a fill:
// the asset spent, the asset received, the fee taken off the received
// asset, and the release of the escrow taken at placement. Only the
// release is a retention movement.
func (s *Service) legEntries(order models.Order, fill, totalDone, feeAmount decimal.Decimal, at time.Time) []models.LedgerEntry {
	target := strings.ToLower(order.Pair.Target())
	base := strings.ToLower(order.Pair.Base())
	qty := fill.Round(s.cfg.AmountDecimals)

	spentCoin, receivedCoin := base, target
	spent, received := totalDone, qty
	if order.Side == models.SideSell {
		spentCoin, receivedCoin = target, base
		spent, received = qty, totalDone
	}

	return []models.LedgerEntry{
		{
			UserID:      order.UserID,
			ItemID:      order.ID,
			Coin:        spentCoin,
			Amount:      spent.Neg(),
			IsRetention: false,
			Type:        models.EntryExecution(order.Side),
			Time:        at,
		},
		{
			UserID:      order.UserID,
			ItemID:      order.ID,
			Coin:        receivedCoin,
			Amount:      received,
			IsRetention: false,
			Type:        models.EntryExecution(order.Side),
			Time:        at,
		},
		{
			UserID:      order.UserID,
			ItemID:      order.ID,
			Coin:        receivedCoin,
			Amount:      feeAmount.Neg(),
			IsRetention: false,
			Type:        models.EntryExecutionFee(order.Side),
			Time:        at,
		},
		{
			UserID:      order.UserID,
			ItemID:      order.ID,
			Coin:        spentCoin,
			Amount:      spent,
			IsRetention: true,
			Type:        models.EntryExecution(order.Side),
			Time:        at,
		},
	}
}

// applyStep folds a committed fill into the in-memory order so the
// matching loop keeps walking with current amounts.
func (s *Service) applyStep(order *models.Order, fill, priceDone decimal.Decimal, at time.Time) {
	order.Amount = order.Amount.Sub(fill).Round(s.cfg.AmountDecimals)
	order.PriceDone = priceDone
	if order.Amount.IsZero() {
		order.Done = true
		done := at
		order.TimeDone = &done
	}
}

func (s *Service) notifyFill(_ context.Context, order models.Order, fill, priceDone, totalDone decimal.Decimal, at time.Time) {
	s.notifier.OrderExecuted(order.UserID, OrderExecutedNotice{
		Side:               order.Side,
		Pair:               order.Pair,
		OrderIdentificator: order.Identificator,
		Amount:             fill,
		Price:              priceDone,
		Total:              totalDone,
		TimeExecuted:       at,
	})
}

func doneTime(done bool, at time.Time) *time.Time {
	if !done {
		return nil
	}
	t := at
	return &t
}
