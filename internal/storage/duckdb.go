package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-paper-trading/internal/logger"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
	"go.uber.org/zap"
)

var accountColumns = []string{
	"id", "owner_id", "balance", "initial_balance", "currency", "equity", "unrealized_pnl",
	"realized_pnl", "total_trades", "winning_trades", "losing_trades", "active", "created_at", "updated_at",
}

var positionColumns = []string{
	"id", "account_id", "symbol", "side", "quantity", "avg_price", "current_price", "unrealized_pnl",
	"created_at", "updated_at",
}

var orderColumns = []string{
	"id", "account_id", "symbol", "side", "order_type", "quantity", "requested_price", "execution_price",
	"amount", "commission", "status", "reason", "signal_id", "created_at", "filled_at", "cancelled_at",
}

// DuckDBGateway stores the ledger in an embedded DuckDB database.
type DuckDBGateway struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBGateway opens the database at path. An empty path opens an in-memory database.
func NewDuckDBGateway(path string, log *logger.Logger) (*DuckDBGateway, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to open duckdb database", err)
	}

	// an in-memory database lives in a single connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return &DuckDBGateway{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the necessary tables for accounts, positions, orders and user settings
func (d *DuckDBGateway) Initialize(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			balance DOUBLE NOT NULL,
			initial_balance DOUBLE NOT NULL,
			currency TEXT NOT NULL,
			equity DOUBLE NOT NULL,
			unrealized_pnl DOUBLE NOT NULL,
			realized_pnl DOUBLE NOT NULL,
			total_trades INTEGER NOT NULL,
			winning_trades INTEGER NOT NULL,
			losing_trades INTEGER NOT NULL,
			active BOOLEAN NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity DOUBLE NOT NULL,
			avg_price DOUBLE NOT NULL,
			current_price DOUBLE NOT NULL,
			unrealized_pnl DOUBLE NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			order_type TEXT NOT NULL,
			quantity DOUBLE NOT NULL,
			requested_price DOUBLE NOT NULL,
			execution_price DOUBLE NOT NULL,
			amount DOUBLE NOT NULL,
			commission DOUBLE NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL,
			signal_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			filled_at TIMESTAMP,
			cancelled_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS user_settings (
			user_id TEXT NOT NULL,
			setting_key TEXT NOT NULL,
			setting_value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, setting_key)
		)`,
	}

	for _, statement := range statements {
		if _, err := d.db.ExecContext(ctx, statement); err != nil {
			return errors.Wrap(errors.ErrCodeStorageFailed, "failed to create schema", err)
		}
	}

	return nil
}

// GetAccount returns the account with the given id, or None if it does not exist
func (d *DuckDBGateway) GetAccount(ctx context.Context, id string) (optional.Option[types.Account], error) {
	row := d.sq.
		Select(accountColumns...).
		From("accounts").
		Where(squirrel.Eq{"id": id}).
		RunWith(d.db).
		QueryRowContext(ctx)

	account, err := scanAccount(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return optional.None[types.Account](), nil
		}

		return optional.None[types.Account](), errors.Wrap(errors.ErrCodeStorageFailed, "failed to get account", err)
	}

	return optional.Some(account), nil
}

// ListAccounts returns every account ordered by creation time
func (d *DuckDBGateway) ListAccounts(ctx context.Context) ([]types.Account, error) {
	rows, err := d.sq.
		Select(accountColumns...).
		From("accounts").
		OrderBy("created_at", "id").
		RunWith(d.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to query accounts", err)
	}
	defer rows.Close()

	accounts := []types.Account{}

	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to scan account", err)
		}

		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "error iterating accounts", err)
	}

	return accounts, nil
}

// SaveAccount inserts a new account
func (d *DuckDBGateway) SaveAccount(ctx context.Context, account types.Account) error {
	_, err := d.sq.
		Insert("accounts").
		Columns(accountColumns...).
		Values(accountValues(account)...).
		RunWith(d.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to save account %s", account.ID)
	}

	return nil
}

// UpdateAccount overwrites the mutable fields of an existing account
func (d *DuckDBGateway) UpdateAccount(ctx context.Context, account types.Account) error {
	return d.updateAccount(ctx, d.db, account)
}

func (d *DuckDBGateway) updateAccount(ctx context.Context, runner squirrel.BaseRunner, account types.Account) error {
	result, err := d.sq.
		Update("accounts").
		SetMap(map[string]any{
			"owner_id":        account.OwnerID,
			"balance":         account.Balance,
			"initial_balance": account.InitialBalance,
			"currency":        account.Currency,
			"equity":          account.Equity,
			"unrealized_pnl":  account.UnrealizedPnL,
			"realized_pnl":    account.RealizedPnL,
			"total_trades":    account.TotalTrades,
			"winning_trades":  account.WinningTrades,
			"losing_trades":   account.LosingTrades,
			"active":          account.Active,
			"updated_at":      account.UpdatedAt.UTC(),
		}).
		Where(squirrel.Eq{"id": account.ID}).
		RunWith(runner).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to update account %s", account.ID)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return errors.Newf(errors.ErrCodeAccountNotFound, "account %s not found", account.ID)
	}

	return nil
}

// CreateOrder inserts a new order
func (d *DuckDBGateway) CreateOrder(ctx context.Context, order types.Order) error {
	return d.insertOrder(ctx, d.db, order)
}

func (d *DuckDBGateway) insertOrder(ctx context.Context, runner squirrel.BaseRunner, order types.Order) error {
	_, err := d.sq.
		Insert("orders").
		Columns(orderColumns...).
		Values(orderValues(order)...).
		RunWith(runner).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to insert order %s", order.ID)
	}

	return nil
}

// CancelOrder moves a PENDING order to CANCELLED in one conditional update, so concurrent
// cancels of the same order cannot both succeed
func (d *DuckDBGateway) CancelOrder(ctx context.Context, id string, cancelledAt time.Time) error {
	result, err := d.sq.
		Update("orders").
		Set("status", string(types.OrderStatusCancelled)).
		Set("cancelled_at", cancelledAt.UTC()).
		Where(squirrel.Eq{"id": id, "status": string(types.OrderStatusPending)}).
		RunWith(d.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to cancel order %s", id)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to cancel order %s", id)
	}

	if affected > 0 {
		return nil
	}

	existing, err := d.GetOrder(ctx, id)
	if err != nil {
		return err
	}

	return orderNotCancellable(id, existing)
}

// GetOrder returns an order by its id
func (d *DuckDBGateway) GetOrder(ctx context.Context, id string) (optional.Option[types.Order], error) {
	row := d.sq.
		Select(orderColumns...).
		From("orders").
		Where(squirrel.Eq{"id": id}).
		RunWith(d.db).
		QueryRowContext(ctx)

	order, err := scanOrder(row)
	if err != nil {
		// check if error is no rows in result set
		if stderrors.Is(err, sql.ErrNoRows) {
			return optional.None[types.Order](), nil
		}

		return optional.None[types.Order](), errors.Wrap(errors.ErrCodeStorageFailed, "failed to get order by id", err)
	}

	return optional.Some(order), nil
}

// ListOrders returns the newest orders first
func (d *DuckDBGateway) ListOrders(ctx context.Context, accountID string, limit int) ([]types.Order, error) {
	query := d.sq.
		Select(orderColumns...).
		From("orders").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(normalizeLimit(limit)))

	if accountID != "" {
		query = query.Where(squirrel.Eq{"account_id": accountID})
	}

	rows, err := query.RunWith(d.db).QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to query orders", err)
	}
	defer rows.Close()

	orders := []types.Order{}

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to scan order", err)
		}

		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "error iterating orders", err)
	}

	return orders, nil
}

// UpsertPosition inserts the position or overwrites it when the id already exists
func (d *DuckDBGateway) UpsertPosition(ctx context.Context, position types.Position) error {
	return d.upsertPosition(ctx, d.db, position)
}

func (d *DuckDBGateway) upsertPosition(ctx context.Context, runner squirrel.BaseRunner, position types.Position) error {
	_, err := d.sq.
		Insert("positions").
		Columns(positionColumns...).
		Values(positionValues(position)...).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			avg_price = EXCLUDED.avg_price,
			current_price = EXCLUDED.current_price,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			updated_at = EXCLUDED.updated_at`).
		RunWith(runner).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to upsert position %s", position.ID)
	}

	return nil
}

// DeletePosition removes a position. Deleting a missing position is not an error.
func (d *DuckDBGateway) DeletePosition(ctx context.Context, id string) error {
	return d.deletePosition(ctx, d.db, id)
}

func (d *DuckDBGateway) deletePosition(ctx context.Context, runner squirrel.BaseRunner, id string) error {
	_, err := d.sq.
		Delete("positions").
		Where(squirrel.Eq{"id": id}).
		RunWith(runner).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to delete position %s", id)
	}

	return nil
}

// ListPositions returns open positions ordered by account and symbol
func (d *DuckDBGateway) ListPositions(ctx context.Context, accountID string) ([]types.Position, error) {
	query := d.sq.
		Select(positionColumns...).
		From("positions").
		OrderBy("account_id", "symbol")

	if accountID != "" {
		query = query.Where(squirrel.Eq{"account_id": accountID})
	}

	rows, err := query.RunWith(d.db).QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to query positions", err)
	}
	defer rows.Close()

	positions := []types.Position{}

	for rows.Next() {
		var position types.Position

		err := rows.Scan(
			&position.ID,
			&position.AccountID,
			&position.Symbol,
			&position.Side,
			&position.Quantity,
			&position.AvgPrice,
			&position.CurrentPrice,
			&position.UnrealizedPnL,
			&position.CreatedAt,
			&position.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to scan position", err)
		}

		positions = append(positions, position)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "error iterating positions", err)
	}

	return positions, nil
}

// GetUserSetting returns the stored value for (userID, key)
func (d *DuckDBGateway) GetUserSetting(ctx context.Context, userID, key string) (optional.Option[types.UserSetting], error) {
	var (
		setting types.UserSetting
		value   string
	)

	err := d.sq.
		Select("user_id", "setting_key", "setting_value", "updated_at").
		From("user_settings").
		Where(squirrel.Eq{"user_id": userID, "setting_key": key}).
		RunWith(d.db).
		QueryRowContext(ctx).
		Scan(&setting.UserID, &setting.SettingKey, &value, &setting.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return optional.None[types.UserSetting](), nil
		}

		return optional.None[types.UserSetting](), errors.Wrap(errors.ErrCodeStorageFailed, "failed to get user setting", err)
	}

	setting.SettingValue = []byte(value)

	return optional.Some(setting), nil
}

// SetUserSetting stores the value for (userID, key), replacing any previous value
func (d *DuckDBGateway) SetUserSetting(ctx context.Context, setting types.UserSetting) error {
	_, err := d.sq.
		Insert("user_settings").
		Columns("user_id", "setting_key", "setting_value", "updated_at").
		Values(setting.UserID, setting.SettingKey, string(setting.SettingValue), setting.UpdatedAt.UTC()).
		Suffix("ON CONFLICT (user_id, setting_key) DO UPDATE SET setting_value = EXCLUDED.setting_value, updated_at = EXCLUDED.updated_at").
		RunWith(d.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to set user setting", err)
	}

	return nil
}

// CommitFill writes one fill in a single transaction
func (d *DuckDBGateway) CommitFill(ctx context.Context, commit FillCommit) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		if err := d.updateAccount(ctx, tx, commit.Account); err != nil {
			return err
		}

		if err := d.insertOrder(ctx, tx, commit.Order); err != nil {
			return err
		}

		if commit.Position != nil {
			if err := d.upsertPosition(ctx, tx, *commit.Position); err != nil {
				return err
			}
		}

		if commit.ClosedPositionID != "" {
			if err := d.deletePosition(ctx, tx, commit.ClosedPositionID); err != nil {
				return err
			}
		}

		return nil
	})
}

// SaveValuation writes the mark-to-market columns of an account and its positions
func (d *DuckDBGateway) SaveValuation(ctx context.Context, account types.Account, positions []types.Position) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		result, err := d.sq.
			Update("accounts").
			Set("unrealized_pnl", account.UnrealizedPnL).
			Set("equity", squirrel.Expr("balance + ?", account.UnrealizedPnL)).
			Set("updated_at", account.UpdatedAt.UTC()).
			Where(squirrel.Eq{"id": account.ID}).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to save valuation of account %s", account.ID)
		}

		affected, err := result.RowsAffected()
		if err == nil && affected == 0 {
			return errors.Newf(errors.ErrCodeAccountNotFound, "account %s not found", account.ID)
		}

		for _, position := range positions {
			_, err := d.sq.
				Update("positions").
				Set("current_price", position.CurrentPrice).
				Set("unrealized_pnl", position.UnrealizedPnL).
				Set("updated_at", position.UpdatedAt.UTC()).
				Where(squirrel.Eq{"id": position.ID}).
				RunWith(tx).
				ExecContext(ctx)
			if err != nil {
				return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to save valuation of position %s", position.ID)
			}
		}

		return nil
	})
}

func (d *DuckDBGateway) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to begin transaction", err)
	}

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			d.logger.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to commit transaction", err)
	}

	return nil
}

// Close closes the database
func (d *DuckDBGateway) Close() error {
	return d.db.Close()
}

func accountValues(account types.Account) []any {
	return []any{
		account.ID, account.OwnerID, account.Balance, account.InitialBalance, account.Currency,
		account.Equity, account.UnrealizedPnL, account.RealizedPnL, account.TotalTrades,
		account.WinningTrades, account.LosingTrades, account.Active, account.CreatedAt.UTC(),
		account.UpdatedAt.UTC(),
	}
}

func positionValues(position types.Position) []any {
	return []any{
		position.ID, position.AccountID, position.Symbol, string(position.Side), position.Quantity,
		position.AvgPrice, position.CurrentPrice, position.UnrealizedPnL, position.CreatedAt.UTC(),
		position.UpdatedAt.UTC(),
	}
}

func orderValues(order types.Order) []any {
	return []any{
		order.ID, order.AccountID, order.Symbol, string(order.Side), string(order.Type), order.Quantity,
		order.RequestedPrice, order.ExecutionPrice, order.Amount, order.Commission, string(order.Status),
		string(order.Reason), order.SignalID, order.CreatedAt.UTC(), nullTime(order.FilledAt),
		nullTime(order.CancelledAt),
	}
}

func scanAccount(row squirrel.RowScanner) (types.Account, error) {
	var account types.Account

	err := row.Scan(
		&account.ID,
		&account.OwnerID,
		&account.Balance,
		&account.InitialBalance,
		&account.Currency,
		&account.Equity,
		&account.UnrealizedPnL,
		&account.RealizedPnL,
		&account.TotalTrades,
		&account.WinningTrades,
		&account.LosingTrades,
		&account.Active,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	return account, err
}

func scanOrder(row squirrel.RowScanner) (types.Order, error) {
	var (
		order       types.Order
		filledAt    sql.NullTime
		cancelledAt sql.NullTime
	)

	err := row.Scan(
		&order.ID,
		&order.AccountID,
		&order.Symbol,
		&order.Side,
		&order.Type,
		&order.Quantity,
		&order.RequestedPrice,
		&order.ExecutionPrice,
		&order.Amount,
		&order.Commission,
		&order.Status,
		&order.Reason,
		&order.SignalID,
		&order.CreatedAt,
		&filledAt,
		&cancelledAt,
	)
	if err != nil {
		return order, fmt.Errorf("scan order: %w", err)
	}

	order.FilledAt = timePtr(filledAt)
	order.CancelledAt = timePtr(cancelledAt)

	return order, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Time: time.Time{}, Valid: false}
	}

	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	value := t.Time

	return &value
}
