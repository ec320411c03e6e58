package storage

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-paper-trading/internal/logger"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type accountModel struct {
	ID             string    `gorm:"primaryKey"`
	OwnerID        string    `gorm:"index;not null"`
	Balance        float64   `gorm:"type:decimal(30,10);not null"`
	InitialBalance float64   `gorm:"type:decimal(30,10);not null"`
	Currency       string    `gorm:"not null"`
	Equity         float64   `gorm:"type:decimal(30,10);not null"`
	UnrealizedPnL  float64   `gorm:"column:unrealized_pnl;type:decimal(30,10);not null"`
	RealizedPnL    float64   `gorm:"column:realized_pnl;type:decimal(30,10);not null"`
	TotalTrades    int       `gorm:"not null"`
	WinningTrades  int       `gorm:"not null"`
	LosingTrades   int       `gorm:"not null"`
	Active         bool      `gorm:"not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime:false;not null"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false;not null"`
}

func (accountModel) TableName() string { return "paper_accounts" }

type positionModel struct {
	ID            string    `gorm:"primaryKey"`
	AccountID     string    `gorm:"index;not null"`
	Symbol        string    `gorm:"index;not null"`
	Side          string    `gorm:"not null"`
	Quantity      float64   `gorm:"type:decimal(30,10);not null"`
	AvgPrice      float64   `gorm:"type:decimal(30,10);not null"`
	CurrentPrice  float64   `gorm:"type:decimal(30,10);not null"`
	UnrealizedPnL float64   `gorm:"column:unrealized_pnl;type:decimal(30,10);not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false;not null"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false;not null"`
}

func (positionModel) TableName() string { return "paper_positions" }

type orderModel struct {
	ID             string  `gorm:"primaryKey"`
	AccountID      string  `gorm:"index;not null"`
	Symbol         string  `gorm:"not null"`
	Side           string  `gorm:"not null"`
	OrderType      string  `gorm:"not null"`
	Quantity       float64 `gorm:"type:decimal(30,10);not null"`
	RequestedPrice float64 `gorm:"type:decimal(30,10);not null"`
	ExecutionPrice float64 `gorm:"type:decimal(30,10);not null"`
	Amount         float64 `gorm:"type:decimal(30,10);not null"`
	Commission     float64 `gorm:"type:decimal(30,10);not null"`
	Status         string  `gorm:"index;not null"`
	Reason         string  `gorm:"not null"`
	SignalID       string
	CreatedAt      time.Time `gorm:"index;autoCreateTime:false;not null"`
	FilledAt       *time.Time
	CancelledAt    *time.Time
}

func (orderModel) TableName() string { return "paper_orders" }

type userSettingModel struct {
	UserID       string    `gorm:"primaryKey"`
	SettingKey   string    `gorm:"primaryKey"`
	SettingValue string    `gorm:"type:jsonb;not null"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false;not null"`
}

func (userSettingModel) TableName() string { return "user_settings" }

// PostgresGateway stores the ledger in PostgreSQL through gorm.
type PostgresGateway struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewPostgresGateway connects to the database described by dsn.
func NewPostgresGateway(dsn string, log *logger.Logger) (*PostgresGateway, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to connect to postgres", err)
	}

	return newPostgresGatewayWithDB(db, log), nil
}

func newPostgresGatewayWithDB(db *gorm.DB, log *logger.Logger) *PostgresGateway {
	return &PostgresGateway{
		db:     db,
		logger: log,
	}
}

// Initialize migrates the schema
func (p *PostgresGateway) Initialize(ctx context.Context) error {
	err := p.db.WithContext(ctx).AutoMigrate(&accountModel{}, &positionModel{}, &orderModel{}, &userSettingModel{})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to migrate database", err)
	}

	return nil
}

func (p *PostgresGateway) GetAccount(ctx context.Context, id string) (optional.Option[types.Account], error) {
	var model accountModel

	err := p.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return optional.None[types.Account](), nil
	}

	if err != nil {
		return optional.None[types.Account](), errors.Wrap(errors.ErrCodeStorageFailed, "failed to get account", err)
	}

	return optional.Some(model.toAccount()), nil
}

func (p *PostgresGateway) ListAccounts(ctx context.Context) ([]types.Account, error) {
	var models []accountModel

	if err := p.db.WithContext(ctx).Order("created_at, id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to query accounts", err)
	}

	accounts := make([]types.Account, 0, len(models))
	for _, model := range models {
		accounts = append(accounts, model.toAccount())
	}

	return accounts, nil
}

func (p *PostgresGateway) SaveAccount(ctx context.Context, account types.Account) error {
	model := newAccountModel(account)
	if err := p.db.WithContext(ctx).Create(&model).Error; err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to save account %s", account.ID)
	}

	return nil
}

func (p *PostgresGateway) UpdateAccount(ctx context.Context, account types.Account) error {
	return updateAccountTx(p.db.WithContext(ctx), account)
}

func updateAccountTx(db *gorm.DB, account types.Account) error {
	model := newAccountModel(account)

	result := db.Model(&accountModel{}).
		Where("id = ?", account.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(&model)
	if result.Error != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, result.Error, "failed to update account %s", account.ID)
	}

	if result.RowsAffected == 0 {
		return errors.Newf(errors.ErrCodeAccountNotFound, "account %s not found", account.ID)
	}

	return nil
}

func (p *PostgresGateway) CreateOrder(ctx context.Context, order types.Order) error {
	model := newOrderModel(order)
	if err := p.db.WithContext(ctx).Create(&model).Error; err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to insert order %s", order.ID)
	}

	return nil
}

func (p *PostgresGateway) CancelOrder(ctx context.Context, id string, cancelledAt time.Time) error {
	result := p.db.WithContext(ctx).Model(&orderModel{}).
		Where("id = ? AND status = ?", id, string(types.OrderStatusPending)).
		Updates(map[string]any{
			"status":       string(types.OrderStatusCancelled),
			"cancelled_at": cancelledAt.UTC(),
		})
	if result.Error != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, result.Error, "failed to cancel order %s", id)
	}

	if result.RowsAffected > 0 {
		return nil
	}

	existing, err := p.GetOrder(ctx, id)
	if err != nil {
		return err
	}

	return orderNotCancellable(id, existing)
}

func (p *PostgresGateway) GetOrder(ctx context.Context, id string) (optional.Option[types.Order], error) {
	var model orderModel

	err := p.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return optional.None[types.Order](), nil
	}

	if err != nil {
		return optional.None[types.Order](), errors.Wrap(errors.ErrCodeStorageFailed, "failed to get order by id", err)
	}

	return optional.Some(model.toOrder()), nil
}

func (p *PostgresGateway) ListOrders(ctx context.Context, accountID string, limit int) ([]types.Order, error) {
	query := p.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(normalizeLimit(limit))
	if accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}

	var models []orderModel
	if err := query.Find(&models).Error; err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to query orders", err)
	}

	orders := make([]types.Order, 0, len(models))
	for _, model := range models {
		orders = append(orders, model.toOrder())
	}

	return orders, nil
}

func (p *PostgresGateway) UpsertPosition(ctx context.Context, position types.Position) error {
	return upsertPositionTx(p.db.WithContext(ctx), position)
}

func upsertPositionTx(db *gorm.DB, position types.Position) error {
	model := newPositionModel(position)

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "avg_price", "current_price", "unrealized_pnl", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to upsert position %s", position.ID)
	}

	return nil
}

func (p *PostgresGateway) DeletePosition(ctx context.Context, id string) error {
	if err := p.db.WithContext(ctx).Delete(&positionModel{}, "id = ?", id).Error; err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to delete position %s", id)
	}

	return nil
}

func (p *PostgresGateway) ListPositions(ctx context.Context, accountID string) ([]types.Position, error) {
	query := p.db.WithContext(ctx).Order("account_id, symbol")
	if accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}

	var models []positionModel
	if err := query.Find(&models).Error; err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to query positions", err)
	}

	positions := make([]types.Position, 0, len(models))
	for _, model := range models {
		positions = append(positions, model.toPosition())
	}

	return positions, nil
}

func (p *PostgresGateway) GetUserSetting(ctx context.Context, userID, key string) (optional.Option[types.UserSetting], error) {
	var model userSettingModel

	err := p.db.WithContext(ctx).First(&model, "user_id = ? AND setting_key = ?", userID, key).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return optional.None[types.UserSetting](), nil
	}

	if err != nil {
		return optional.None[types.UserSetting](), errors.Wrap(errors.ErrCodeStorageFailed, "failed to get user setting", err)
	}

	return optional.Some(types.UserSetting{
		UserID:       model.UserID,
		SettingKey:   model.SettingKey,
		SettingValue: []byte(model.SettingValue),
		UpdatedAt:    model.UpdatedAt,
	}), nil
}

func (p *PostgresGateway) SetUserSetting(ctx context.Context, setting types.UserSetting) error {
	model := userSettingModel{
		UserID:       setting.UserID,
		SettingKey:   setting.SettingKey,
		SettingValue: string(setting.SettingValue),
		UpdatedAt:    setting.UpdatedAt.UTC(),
	}

	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"setting_value", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to set user setting", err)
	}

	return nil
}

func (p *PostgresGateway) CommitFill(ctx context.Context, commit FillCommit) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateAccountTx(tx, commit.Account); err != nil {
			return err
		}

		order := newOrderModel(commit.Order)
		if err := tx.Create(&order).Error; err != nil {
			return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to insert order %s", commit.Order.ID)
		}

		if commit.Position != nil {
			if err := upsertPositionTx(tx, *commit.Position); err != nil {
				return err
			}
		}

		if commit.ClosedPositionID != "" {
			if err := tx.Delete(&positionModel{}, "id = ?", commit.ClosedPositionID).Error; err != nil {
				return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to delete position %s", commit.ClosedPositionID)
			}
		}

		return nil
	})
}

func (p *PostgresGateway) SaveValuation(ctx context.Context, account types.Account, positions []types.Position) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&accountModel{}).
			Where("id = ?", account.ID).
			Updates(map[string]any{
				"unrealized_pnl": account.UnrealizedPnL,
				"equity":         gorm.Expr("balance + ?", account.UnrealizedPnL),
				"updated_at":     account.UpdatedAt.UTC(),
			})
		if result.Error != nil {
			return errors.Wrapf(errors.ErrCodeStorageFailed, result.Error, "failed to save valuation of account %s", account.ID)
		}

		if result.RowsAffected == 0 {
			return errors.Newf(errors.ErrCodeAccountNotFound, "account %s not found", account.ID)
		}

		for _, position := range positions {
			err := tx.Model(&positionModel{}).
				Where("id = ?", position.ID).
				Updates(map[string]any{
					"current_price":  position.CurrentPrice,
					"unrealized_pnl": position.UnrealizedPnL,
					"updated_at":     position.UpdatedAt.UTC(),
				}).Error
			if err != nil {
				return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to save valuation of position %s", position.ID)
			}
		}

		return nil
	})
}

func (p *PostgresGateway) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func newAccountModel(account types.Account) accountModel {
	return accountModel{
		ID:             account.ID,
		OwnerID:        account.OwnerID,
		Balance:        account.Balance,
		InitialBalance: account.InitialBalance,
		Currency:       account.Currency,
		Equity:         account.Equity,
		UnrealizedPnL:  account.UnrealizedPnL,
		RealizedPnL:    account.RealizedPnL,
		TotalTrades:    account.TotalTrades,
		WinningTrades:  account.WinningTrades,
		LosingTrades:   account.LosingTrades,
		Active:         account.Active,
		CreatedAt:      account.CreatedAt.UTC(),
		UpdatedAt:      account.UpdatedAt.UTC(),
	}
}

func (m accountModel) toAccount() types.Account {
	return types.Account{
		ID:             m.ID,
		OwnerID:        m.OwnerID,
		Balance:        m.Balance,
		InitialBalance: m.InitialBalance,
		Currency:       m.Currency,
		Equity:         m.Equity,
		UnrealizedPnL:  m.UnrealizedPnL,
		RealizedPnL:    m.RealizedPnL,
		TotalTrades:    m.TotalTrades,
		WinningTrades:  m.WinningTrades,
		LosingTrades:   m.LosingTrades,
		Active:         m.Active,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func newPositionModel(position types.Position) positionModel {
	return positionModel{
		ID:            position.ID,
		AccountID:     position.AccountID,
		Symbol:        position.Symbol,
		Side:          string(position.Side),
		Quantity:      position.Quantity,
		AvgPrice:      position.AvgPrice,
		CurrentPrice:  position.CurrentPrice,
		UnrealizedPnL: position.UnrealizedPnL,
		CreatedAt:     position.CreatedAt.UTC(),
		UpdatedAt:     position.UpdatedAt.UTC(),
	}
}

func (m positionModel) toPosition() types.Position {
	return types.Position{
		ID:            m.ID,
		AccountID:     m.AccountID,
		Symbol:        m.Symbol,
		Side:          types.PositionSide(m.Side),
		Quantity:      m.Quantity,
		AvgPrice:      m.AvgPrice,
		CurrentPrice:  m.CurrentPrice,
		UnrealizedPnL: m.UnrealizedPnL,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func newOrderModel(order types.Order) orderModel {
	return orderModel{
		ID:             order.ID,
		AccountID:      order.AccountID,
		Symbol:         order.Symbol,
		Side:           string(order.Side),
		OrderType:      string(order.Type),
		Quantity:       order.Quantity,
		RequestedPrice: order.RequestedPrice,
		ExecutionPrice: order.ExecutionPrice,
		Amount:         order.Amount,
		Commission:     order.Commission,
		Status:         string(order.Status),
		Reason:         string(order.Reason),
		SignalID:       order.SignalID,
		CreatedAt:      order.CreatedAt.UTC(),
		FilledAt:       order.FilledAt,
		CancelledAt:    order.CancelledAt,
	}
}

func (m orderModel) toOrder() types.Order {
	return types.Order{
		ID:             m.ID,
		AccountID:      m.AccountID,
		Symbol:         m.Symbol,
		Side:           types.OrderSide(m.Side),
		Type:           types.OrderType(m.OrderType),
		Quantity:       m.Quantity,
		RequestedPrice: m.RequestedPrice,
		ExecutionPrice: m.ExecutionPrice,
		Amount:         m.Amount,
		Commission:     m.Commission,
		Status:         types.OrderStatus(m.Status),
		Reason:         types.OrderReason(m.Reason),
		SignalID:       m.SignalID,
		CreatedAt:      m.CreatedAt,
		FilledAt:       m.FilledAt,
		CancelledAt:    m.CancelledAt,
	}
}
