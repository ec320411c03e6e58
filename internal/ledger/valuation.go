package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-paper-trading/internal/marketdata"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
	"go.uber.org/zap"
)

// RecomputeEquity marks the open positions of an account to the given prices and recomputes its
// equity. Symbols missing from prices keep their last mark.
//
// The marks are kept in memory even when persisting them fails; that case is logged as a
// consistency risk because the database keeps the previous valuation until the next mark.
func (l *Ledger) RecomputeEquity(ctx context.Context, accountID string, prices map[string]float64) (types.Account, error) {
	unlock := l.accountLocks.lock(accountID)
	defer unlock()

	normalized := make(map[string]float64, len(prices))
	for symbol, price := range prices {
		normalized[strings.ToUpper(symbol)] = price
	}

	account, marked, ok := l.repo.mark(accountID, normalized, l.now)
	if !ok {
		return types.Account{}, errors.Newf(errors.ErrCodeAccountNotFound, "account %s not found", accountID)
	}

	if err := l.gateway.SaveValuation(ctx, account, marked); err != nil {
		l.logger.Warn("Failed to persist valuation",
			zap.Bool("consistency_risk", true),
			zap.String("account_id", accountID),
			zap.Int("positions", len(marked)),
			zap.Error(err),
		)
	}

	for _, position := range marked {
		l.publisher.Publish(types.NewEvent(types.EventPositionUpdated, position))
	}

	l.publisher.Publish(types.NewEvent(types.EventAccountUpdated, account))

	return account, nil
}

// RunValuation marks every account holding positions to market on each tick until ctx is done.
func (l *Ledger) RunValuation(ctx context.Context, interval time.Duration, provider marketdata.Provider) {
	if interval <= 0 {
		l.logger.Info("Valuation loop disabled")

		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.ValueAll(ctx, provider)
		}
	}
}

// ValueAll runs one mark-to-market pass. Each symbol is priced once per pass; symbols whose price
// cannot be fetched keep their last mark.
func (l *Ledger) ValueAll(ctx context.Context, provider marketdata.Provider) {
	prices := map[string]float64{}

	for _, position := range l.repo.listPositions("") {
		if _, seen := prices[position.Symbol]; seen {
			continue
		}

		price, err := provider.GetCurrentPrice(ctx, position.Symbol)
		if err != nil {
			l.logger.Warn("Failed to price position",
				zap.String("symbol", position.Symbol),
				zap.Error(err),
			)

			prices[position.Symbol] = 0

			continue
		}

		prices[position.Symbol] = price
	}

	for _, accountID := range l.repo.accountsWithPositions() {
		if ctx.Err() != nil {
			return
		}

		if _, err := l.RecomputeEquity(ctx, accountID, prices); err != nil {
			l.logger.Warn("Failed to value account", zap.String("account_id", accountID), zap.Error(err))
		}
	}
}
