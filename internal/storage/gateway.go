// Package storage is the persistence gateway of the paper trading ledger.
//
// Two backends implement Gateway: an embedded DuckDB database (default, also used in tests) and
// PostgreSQL through gorm. A single Gateway instance is created at startup and injected into
// every component that needs persistence.
package storage

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-paper-trading/internal/config"
	"github.com/rxtech-lab/argo-paper-trading/internal/logger"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
)

// DefaultOrderLimit is used by ListOrders when the caller passes a non-positive limit.
const DefaultOrderLimit = 50

// FillCommit is everything a single fill changes. It is written in one transaction.
type FillCommit struct {
	Account types.Account
	Order   types.Order
	// Position is upserted when set
	Position *types.Position
	// ClosedPositionID is deleted when non-empty
	ClosedPositionID string
}

// Gateway is the narrow CRUD interface over accounts, positions, orders and user settings.
type Gateway interface {
	// Initialize creates the schema if it does not exist.
	Initialize(ctx context.Context) error

	GetAccount(ctx context.Context, id string) (optional.Option[types.Account], error)
	ListAccounts(ctx context.Context) ([]types.Account, error)
	// SaveAccount inserts a new account.
	SaveAccount(ctx context.Context, account types.Account) error
	UpdateAccount(ctx context.Context, account types.Account) error

	CreateOrder(ctx context.Context, order types.Order) error
	// CancelOrder moves a PENDING order to CANCELLED. It fails with ErrCodeOrderNotFound for an
	// unknown order and ErrCodeInvalidOrderState when the order is no longer pending.
	CancelOrder(ctx context.Context, id string, cancelledAt time.Time) error
	GetOrder(ctx context.Context, id string) (optional.Option[types.Order], error)
	// ListOrders returns the newest orders first. An empty accountID lists every account.
	ListOrders(ctx context.Context, accountID string, limit int) ([]types.Order, error)

	UpsertPosition(ctx context.Context, position types.Position) error
	DeletePosition(ctx context.Context, id string) error
	// ListPositions lists open positions. An empty accountID lists every account.
	ListPositions(ctx context.Context, accountID string) ([]types.Position, error)

	GetUserSetting(ctx context.Context, userID, key string) (optional.Option[types.UserSetting], error)
	SetUserSetting(ctx context.Context, setting types.UserSetting) error

	// CommitFill writes the account, the order and the position change of one fill atomically.
	CommitFill(ctx context.Context, commit FillCommit) error
	// SaveValuation writes mark-to-market results atomically. Only the valuation columns are
	// touched: the account equity is recomputed from the stored balance, and positions that no
	// longer exist are skipped.
	SaveValuation(ctx context.Context, account types.Account, positions []types.Position) error

	Close() error
}

// Open creates the Gateway selected by the storage configuration and initializes its schema.
func Open(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (Gateway, error) {
	var (
		gateway Gateway
		err     error
	)

	switch cfg.Driver {
	case config.StorageDriverDuckDB:
		gateway, err = NewDuckDBGateway(cfg.DSN, log)
	case config.StorageDriverPostgres:
		gateway, err = NewPostgresGateway(cfg.DSN, log)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported storage driver %q", cfg.Driver)
	}

	if err != nil {
		return nil, err
	}

	if err := gateway.Initialize(ctx); err != nil {
		_ = gateway.Close()

		return nil, err
	}

	return gateway, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultOrderLimit
	}

	return limit
}

func orderNotCancellable(id string, existing optional.Option[types.Order]) error {
	order, err := existing.Take()
	if err != nil {
		return errors.Newf(errors.ErrCodeOrderNotFound, "order %s not found", id)
	}

	return errors.Newf(errors.ErrCodeInvalidOrderState, "order %s cannot be cancelled in status %s", id, order.Status)
}
