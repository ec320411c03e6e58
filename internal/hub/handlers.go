package hub

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-paper-trading/internal/config"
	"github.com/rxtech-lab/argo-paper-trading/internal/executor"
	"github.com/rxtech-lab/argo-paper-trading/internal/marketdata"
	"github.com/rxtech-lab/argo-paper-trading/internal/orchestrator"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
)

// Request types served by the hub.
const (
	MessageGetAccounts       = "get_paper_trading_accounts"
	MessageGetAccount        = "get_paper_trading_account"
	MessageGetPositions      = "get_paper_trading_positions"
	MessageGetOrders         = "get_paper_trading_orders"
	MessagePlaceOrder        = "place_paper_trading_order"
	MessageCancelOrder       = "cancel_paper_trading_order"
	MessageGetUserSetting    = "get_user_setting"
	MessageSetUserSetting    = "set_user_setting"
	MessageGetTradingConfig  = "get_trading_config"
	MessageUpdateTradingConf = "update_trading_config"
	MessageGetConfigSchema   = "get_trading_config_schema"
	MessageExecuteSignal     = "execute_trading_signal"
	MessageGetMarketData     = "get_market_data"
)

// LedgerReader is the read side of the ledger.
type LedgerReader interface {
	ListAccounts() []types.Account
	GetAccount(id string) (types.Account, error)
	ListPositions(accountID string) []types.Position
}

// OrderService places, cancels and lists orders.
type OrderService interface {
	PlaceMarketOrder(ctx context.Context, req executor.MarketOrderRequest) (types.Order, error)
	PlaceLimitOrder(ctx context.Context, req executor.LimitOrderRequest) (types.Order, error)
	CancelOrder(ctx context.Context, orderID string) (types.Order, error)
	ListOrders(ctx context.Context, accountID string, limit int) ([]types.Order, error)
}

// SignalService executes trading signals.
type SignalService interface {
	Execute(ctx context.Context, signal types.Signal) (orchestrator.ExecutionResult, error)
}

// SettingStore persists user settings.
type SettingStore interface {
	GetUserSetting(ctx context.Context, userID, key string) (optional.Option[types.UserSetting], error)
	SetUserSetting(ctx context.Context, setting types.UserSetting) error
}

// Services are the components the hub dispatches to.
type Services struct {
	Ledger     LedgerReader
	Orders     OrderService
	Signals    SignalService
	Settings   SettingStore
	MarketData marketdata.Provider
	Trading    *config.Holder
	// DefaultTimeframe is used when a request omits the timeframe
	DefaultTimeframe string
}

type handlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

type emptyRequest struct{}

type getAccountRequest struct {
	AccountID string `json:"accountId" validate:"required"`
}

type getPositionsRequest struct {
	AccountID string `json:"accountId"`
}

type getOrdersRequest struct {
	AccountID string `json:"accountId"`
	Limit     int    `json:"limit" validate:"gte=0,lte=500"`
}

type placeOrderRequest struct {
	AccountID string          `json:"accountId" validate:"required"`
	Symbol    string          `json:"symbol" validate:"required"`
	Side      types.OrderSide `json:"side" validate:"required,oneof=BUY SELL"`
	Type      types.OrderType `json:"type" validate:"omitempty,oneof=MARKET LIMIT"`
	Quantity  float64         `json:"quantity" validate:"gt=0"`
	// Price is the reference price of a market order or the limit price of a limit order
	Price *float64 `json:"price" validate:"omitempty,gt=0"`
}

type cancelOrderRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

type getUserSettingRequest struct {
	UserID     string `json:"userId" validate:"required"`
	SettingKey string `json:"settingKey" validate:"required"`
}

type setUserSettingRequest struct {
	UserID       string          `json:"userId" validate:"required"`
	SettingKey   string          `json:"settingKey" validate:"required"`
	SettingValue json.RawMessage `json:"settingValue"`
}

type executeSignalRequest struct {
	Symbol         string           `json:"symbol" validate:"required"`
	Side           types.SignalSide `json:"side" validate:"required,oneof=BUY SELL HOLD"`
	Timeframe      string           `json:"timeframe"`
	Confidence     float64          `json:"confidence" validate:"gte=0,lte=1"`
	ReferencePrice float64          `json:"referencePrice" validate:"gte=0"`
	Source         string           `json:"source"`
	Reasoning      string           `json:"reasoning"`
}

type getMarketDataRequest struct {
	Symbol    string `json:"symbol" validate:"required"`
	Timeframe string `json:"timeframe"`
}

// UserSettingResponse is the data of get_user_setting. SettingValue is null when the key is unset.
type UserSettingResponse struct {
	UserID       string          `json:"userId"`
	SettingKey   string          `json:"settingKey"`
	SettingValue json.RawMessage `json:"settingValue"`
	UpdatedAt    *time.Time      `json:"updatedAt,omitempty"`
}

// register adds a handler decoding and validating its payload as T before fn runs.
func register[T any](h *Hub, messageType string, fn func(ctx context.Context, req T) (any, error)) {
	h.handlers[messageType] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req T

		if len(payload) > 0 && string(payload) != "null" {
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, errors.Wrap(errors.ErrCodeValidation, "Invalid payload: "+err.Error(), err)
			}
		}

		if err := h.validate.Struct(req); err != nil {
			return nil, errors.Wrap(errors.ErrCodeValidation, validationMessage(err), err)
		}

		return fn(ctx, req)
	}
}

func (h *Hub) registerHandlers() {
	register(h, MessageTypePing, h.handlePing)
	register(h, MessageGetAccounts, h.handleGetAccounts)
	register(h, MessageGetAccount, h.handleGetAccount)
	register(h, MessageGetPositions, h.handleGetPositions)
	register(h, MessageGetOrders, h.handleGetOrders)
	register(h, MessagePlaceOrder, h.handlePlaceOrder)
	register(h, MessageCancelOrder, h.handleCancelOrder)
	register(h, MessageGetUserSetting, h.handleGetUserSetting)
	register(h, MessageSetUserSetting, h.handleSetUserSetting)
	register(h, MessageGetTradingConfig, h.handleGetTradingConfig)
	register(h, MessageUpdateTradingConf, h.handleUpdateTradingConfig)
	register(h, MessageGetConfigSchema, h.handleGetConfigSchema)
	register(h, MessageExecuteSignal, h.handleExecuteSignal)
	register(h, MessageGetMarketData, h.handleGetMarketData)
}

func (h *Hub) handlePing(_ context.Context, _ emptyRequest) (any, error) {
	return map[string]string{"timestamp": h.now().Format(time.RFC3339Nano)}, nil
}

func (h *Hub) handleGetAccounts(_ context.Context, _ emptyRequest) (any, error) {
	return map[string]any{"accounts": h.services.Ledger.ListAccounts()}, nil
}

func (h *Hub) handleGetAccount(_ context.Context, req getAccountRequest) (any, error) {
	account, err := h.services.Ledger.GetAccount(req.AccountID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"account":   account,
		"positions": h.services.Ledger.ListPositions(req.AccountID),
	}, nil
}

func (h *Hub) handleGetPositions(_ context.Context, req getPositionsRequest) (any, error) {
	if req.AccountID != "" {
		if _, err := h.services.Ledger.GetAccount(req.AccountID); err != nil {
			return nil, err
		}
	}

	return map[string]any{"positions": h.services.Ledger.ListPositions(req.AccountID)}, nil
}

func (h *Hub) handleGetOrders(ctx context.Context, req getOrdersRequest) (any, error) {
	orders, err := h.services.Orders.ListOrders(ctx, req.AccountID, req.Limit)
	if err != nil {
		return nil, err
	}

	return map[string]any{"orders": orders}, nil
}

func (h *Hub) handlePlaceOrder(ctx context.Context, req placeOrderRequest) (any, error) {
	var (
		order types.Order
		err   error
	)

	if req.Type == types.OrderTypeLimit {
		if req.Price == nil {
			return nil, errors.New(errors.ErrCodeMissingParameter, "Missing required field: price")
		}

		order, err = h.services.Orders.PlaceLimitOrder(ctx, executor.LimitOrderRequest{
			AccountID:  req.AccountID,
			Symbol:     req.Symbol,
			Side:       req.Side,
			Quantity:   req.Quantity,
			LimitPrice: *req.Price,
		})
	} else {
		referencePrice := optional.None[float64]()
		if req.Price != nil {
			referencePrice = optional.Some(*req.Price)
		}

		order, err = h.services.Orders.PlaceMarketOrder(ctx, executor.MarketOrderRequest{
			AccountID:      req.AccountID,
			Symbol:         req.Symbol,
			Side:           req.Side,
			Quantity:       req.Quantity,
			ReferencePrice: referencePrice,
			Reason:         types.OrderReasonManual,
			SignalID:       "",
		})
	}

	if err != nil {
		return nil, err
	}

	return map[string]any{"order": order}, nil
}

func (h *Hub) handleCancelOrder(ctx context.Context, req cancelOrderRequest) (any, error) {
	order, err := h.services.Orders.CancelOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	return map[string]any{"order": order}, nil
}

func (h *Hub) handleGetUserSetting(ctx context.Context, req getUserSettingRequest) (any, error) {
	found, err := h.services.Settings.GetUserSetting(ctx, req.UserID, req.SettingKey)
	if err != nil {
		return nil, err
	}

	response := UserSettingResponse{
		UserID:       req.UserID,
		SettingKey:   req.SettingKey,
		SettingValue: nil,
		UpdatedAt:    nil,
	}

	if setting, err := found.Take(); err == nil {
		response.SettingValue = setting.SettingValue
		response.UpdatedAt = &setting.UpdatedAt
	}

	return response, nil
}

func (h *Hub) handleSetUserSetting(ctx context.Context, req setUserSettingRequest) (any, error) {
	if len(req.SettingValue) == 0 || string(req.SettingValue) == "null" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "settingValue is required")
	}

	setting := types.UserSetting{
		UserID:       req.UserID,
		SettingKey:   req.SettingKey,
		SettingValue: req.SettingValue,
		UpdatedAt:    h.now(),
	}

	if err := h.services.Settings.SetUserSetting(ctx, setting); err != nil {
		return nil, err
	}

	return setting, nil
}

func (h *Hub) handleGetTradingConfig(_ context.Context, _ emptyRequest) (any, error) {
	return h.services.Trading.Trading(), nil
}

func (h *Hub) handleUpdateTradingConfig(_ context.Context, req config.TradingConfigPatch) (any, error) {
	if req.IsEmpty() {
		return nil, errors.New(errors.ErrCodeMissingParameter, "no trading settings to update")
	}

	updated, err := h.services.Trading.UpdateTrading(req)
	if err != nil {
		return nil, err
	}

	h.Broadcast(types.NewEvent(types.EventConfigChanged, updated))

	return updated, nil
}

func (h *Hub) handleGetConfigSchema(_ context.Context, _ emptyRequest) (any, error) {
	return config.TradingSchema(), nil
}

func (h *Hub) handleExecuteSignal(ctx context.Context, req executeSignalRequest) (any, error) {
	timeframe := req.Timeframe
	if timeframe == "" {
		timeframe = h.services.DefaultTimeframe
	}

	return h.services.Signals.Execute(ctx, types.Signal{
		ID:             "",
		Symbol:         req.Symbol,
		Side:           req.Side,
		Timeframe:      timeframe,
		Confidence:     req.Confidence,
		ReferencePrice: req.ReferencePrice,
		Source:         req.Source,
		Reasoning:      req.Reasoning,
		CreatedAt:      h.now(),
	})
}

func (h *Hub) handleGetMarketData(ctx context.Context, req getMarketDataRequest) (any, error) {
	timeframe := req.Timeframe
	if timeframe == "" {
		timeframe = h.services.DefaultTimeframe
	}

	return h.services.MarketData.GetMarketData(ctx, strings.ToUpper(req.Symbol), timeframe)
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	return validate
}

// validationMessage turns validator errors into one human-readable line.
func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	messages := make([]string, 0, len(validationErrors))

	for _, fieldError := range validationErrors {
		switch fieldError.Tag() {
		case "required":
			messages = append(messages, "Missing required field: "+fieldError.Field())
		case "oneof":
			messages = append(messages, fieldError.Field()+" must be one of: "+fieldError.Param())
		default:
			messages = append(messages, "Invalid value for "+fieldError.Field()+": must be "+fieldError.Tag()+" "+fieldError.Param())
		}
	}

	return strings.Join(messages, "; ")
}
