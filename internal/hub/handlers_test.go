package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rxtech-lab/argo-paper-trading/internal/orchestrator"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
)

func (suite *HubTestSuite) dispatch(raw string) OutboundMessage {
	return suite.hub.Dispatch(context.Background(), []byte(raw))
}

// roundTrip returns the response data decoded into out.
func (suite *HubTestSuite) roundTrip(response OutboundMessage, out any) {
	encoded, err := json.Marshal(response.Data)
	suite.Require().NoError(err)
	suite.Require().NoError(json.Unmarshal(encoded, out))
}

func (suite *HubTestSuite) errorText(response OutboundMessage) string {
	suite.Require().Equal(MessageTypeError, response.Type)

	data, ok := response.Data.(ErrorData)
	suite.Require().True(ok)

	return data.Message
}

func (suite *HubTestSuite) TestDispatchProtocolErrors() {
	tests := []struct {
		name      string
		raw       string
		message   string
		requestID string
	}{
		{"not json", `hello`, "Invalid message format", ""},
		{"array", `[1,2]`, "Invalid message format", ""},
		{"missing type", `{"requestId":"r9"}`, "Invalid message format", `"r9"`},
		{"unknown type", `{"type":"launch_rocket","requestId":"r2"}`, "Unknown message type: launch_rocket", `"r2"`},
		{"unknown type without id", `{"type":"launch_rocket"}`, "Unknown message type: launch_rocket", ""},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			response := suite.dispatch(tc.raw)
			suite.Equal(tc.message, suite.errorText(response))
			suite.Equal(tc.requestID, string(response.RequestID))
		})
	}
}

func (suite *HubTestSuite) TestDispatchEchoesRequestID() {
	for _, requestID := range []string{`"r1"`, `""`, `"a b c"`, `42`, `"ünïcødé"`} {
		response := suite.dispatch(fmt.Sprintf(`{"type":"ping","requestId":%s}`, requestID))
		suite.Equal(MessageTypePong, response.Type)
		suite.JSONEq(requestID, string(response.RequestID))
	}

	response := suite.dispatch(`{"type":"ping"}`)

	encoded, err := json.Marshal(response)
	suite.Require().NoError(err)
	suite.NotContains(string(encoded), "requestId")
}

func (suite *HubTestSuite) TestDispatchValidation() {
	tests := []struct {
		name    string
		raw     string
		message string
	}{
		{
			name:    "missing account id",
			raw:     `{"type":"get_paper_trading_account","payload":{}}`,
			message: "Missing required field: accountId",
		},
		{
			name:    "missing setting key",
			raw:     `{"type":"get_user_setting","payload":{"userId":"u1"}}`,
			message: "Missing required field: settingKey",
		},
		{
			name:    "missing setting value",
			raw:     `{"type":"set_user_setting","payload":{"userId":"u1","settingKey":"theme"}}`,
			message: "settingValue is required",
		},
		{
			name:    "bad side",
			raw:     `{"type":"place_paper_trading_order","payload":{"accountId":"acc-1","symbol":"BTCUSDT","side":"HOLD","quantity":1}}`,
			message: "side must be one of: BUY SELL",
		},
		{
			name:    "limit without price",
			raw:     `{"type":"place_paper_trading_order","payload":{"accountId":"acc-1","symbol":"BTCUSDT","side":"BUY","type":"LIMIT","quantity":1}}`,
			message: "Missing required field: price",
		},
		{
			name:    "limit too large",
			raw:     `{"type":"get_paper_trading_orders","payload":{"limit":100000}}`,
			message: "Invalid value for limit: must be lte 500",
		},
		{
			name:    "empty config update",
			raw:     `{"type":"update_trading_config","payload":{}}`,
			message: "no trading settings to update",
		},
		{
			name:    "wrong payload type",
			raw:     `{"type":"get_paper_trading_account","payload":{"accountId":7}}`,
			message: "",
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			response := suite.dispatch(tc.raw)
			message := suite.errorText(response)

			if tc.message != "" {
				suite.Equal(tc.message, message)
			}
		})
	}
}

func (suite *HubTestSuite) TestDispatchAccounts() {
	response := suite.dispatch(`{"type":"get_paper_trading_accounts","requestId":"a"}`)
	suite.Equal(MessageGetAccounts+"_response", response.Type)

	var accounts struct {
		Accounts []types.Account `json:"accounts"`
	}

	suite.roundTrip(response, &accounts)
	suite.Require().Len(accounts.Accounts, 1)
	suite.Equal("acc-1", accounts.Accounts[0].ID)

	response = suite.dispatch(`{"type":"get_paper_trading_account","payload":{"accountId":"acc-1"}}`)
	suite.Equal(MessageGetAccount+"_response", response.Type)

	response = suite.dispatch(`{"type":"get_paper_trading_account","payload":{"accountId":"nope"}}`)
	suite.Equal("account nope not found", suite.errorText(response))

	response = suite.dispatch(`{"type":"get_paper_trading_positions","payload":{"accountId":"nope"}}`)
	suite.Equal(MessageTypeError, response.Type)
}

func (suite *HubTestSuite) TestDispatchOrderFlow() {
	response := suite.dispatch(`{"type":"place_paper_trading_order","requestId":"1",` +
		`"payload":{"accountId":"acc-1","symbol":"btcusdt","side":"BUY","quantity":0.1,"price":50000}}`)
	suite.Require().Equal(MessagePlaceOrder+"_response", response.Type, "%+v", response.Data)

	var placed struct {
		Order types.Order `json:"order"`
	}

	suite.roundTrip(response, &placed)
	suite.Equal(types.OrderStatusFilled, placed.Order.Status)
	suite.InDelta(50025.0, placed.Order.ExecutionPrice, 1e-9)

	response = suite.dispatch(`{"type":"get_paper_trading_positions","payload":{"accountId":"acc-1"}}`)

	var positions struct {
		Positions []types.Position `json:"positions"`
	}

	suite.roundTrip(response, &positions)
	suite.Require().Len(positions.Positions, 1)
	suite.Equal("BTCUSDT", positions.Positions[0].Symbol)

	response = suite.dispatch(`{"type":"place_paper_trading_order",` +
		`"payload":{"accountId":"acc-1","symbol":"ETHUSDT","side":"BUY","type":"LIMIT","quantity":1,"price":1500}}`)
	suite.roundTrip(response, &placed)
	suite.Equal(types.OrderStatusPending, placed.Order.Status)

	response = suite.dispatch(fmt.Sprintf(`{"type":"cancel_paper_trading_order","payload":{"orderId":%q}}`, placed.Order.ID))
	suite.roundTrip(response, &placed)
	suite.Equal(types.OrderStatusCancelled, placed.Order.Status)

	response = suite.dispatch(fmt.Sprintf(`{"type":"cancel_paper_trading_order","payload":{"orderId":%q}}`, placed.Order.ID))
	suite.Contains(suite.errorText(response), "cannot be cancelled")

	response = suite.dispatch(`{"type":"get_paper_trading_orders","payload":{"accountId":"acc-1","limit":1}}`)

	var orders struct {
		Orders []types.Order `json:"orders"`
	}

	suite.roundTrip(response, &orders)
	suite.Len(orders.Orders, 1)
}

func (suite *HubTestSuite) TestDispatchInsufficientBalance() {
	response := suite.dispatch(`{"type":"place_paper_trading_order","requestId":"x",` +
		`"payload":{"accountId":"acc-1","symbol":"BTCUSDT","side":"BUY","quantity":1,"price":50000}}`)

	suite.Contains(suite.errorText(response), "insufficient balance")
	suite.Equal(`"x"`, string(response.RequestID))
}

func (suite *HubTestSuite) TestDispatchUserSettings() {
	response := suite.dispatch(`{"type":"get_user_setting","payload":{"userId":"u1","settingKey":"theme"}}`)

	var setting UserSettingResponse

	suite.roundTrip(response, &setting)
	suite.Equal("u1", setting.UserID)
	suite.Equal("null", string(setting.SettingValue))

	response = suite.dispatch(`{"type":"set_user_setting","payload":{"userId":"u1","settingKey":"theme","settingValue":{"mode":"dark"}}}`)
	suite.Equal(MessageSetUserSetting+"_response", response.Type)

	response = suite.dispatch(`{"type":"get_user_setting","payload":{"userId":"u1","settingKey":"theme"}}`)
	suite.roundTrip(response, &setting)
	suite.JSONEq(`{"mode":"dark"}`, string(setting.SettingValue))
	suite.NotNil(setting.UpdatedAt)
}

func (suite *HubTestSuite) TestDispatchTradingConfig() {
	response := suite.dispatch(`{"type":"get_trading_config"}`)

	var trading map[string]any

	suite.roundTrip(response, &trading)
	suite.InDelta(0.001, trading["commissionRate"], 1e-12)

	response = suite.dispatch(`{"type":"update_trading_config","payload":{"maxSignalsPerHour":20}}`)
	suite.roundTrip(response, &trading)
	suite.InDelta(20.0, trading["maxSignalsPerHour"], 1e-12)

	response = suite.dispatch(`{"type":"update_trading_config","payload":{"commissionRate":5}}`)
	suite.Equal(MessageTypeError, response.Type)

	response = suite.dispatch(`{"type":"get_trading_config_schema"}`)

	var schema map[string]any

	suite.roundTrip(response, &schema)
	suite.Equal("trading-config", schema["title"])
}

func (suite *HubTestSuite) TestDispatchExecuteSignal() {
	response := suite.dispatch(`{"type":"execute_trading_signal","requestId":"s1",` +
		`"payload":{"symbol":"ETHUSDT","side":"BUY","confidence":0.9}}`)
	suite.Require().Equal(MessageExecuteSignal+"_response", response.Type, "%+v", response.Data)

	var result orchestrator.ExecutionResult

	suite.roundTrip(response, &result)
	suite.True(result.Executed)
	suite.Equal("1h", result.Signal.Timeframe)
	suite.Equal(1, result.Filled)

	response = suite.dispatch(`{"type":"execute_trading_signal","payload":{"symbol":"ETH/USDT","side":"BUY"}}`)
	suite.roundTrip(response, &result)
	suite.False(result.Executed)
	suite.Equal(orchestrator.SkipReasonInvalidSymbol, result.SkipReason)
}

func (suite *HubTestSuite) TestDispatchMarketData() {
	response := suite.dispatch(`{"type":"get_market_data","payload":{"symbol":"btcusdt"}}`)

	var snapshot types.MarketSnapshot

	suite.roundTrip(response, &snapshot)
	suite.Equal("BTCUSDT", snapshot.Symbol)
	suite.Equal(50000.0, snapshot.CurrentPrice)

	response = suite.dispatch(`{"type":"get_market_data","payload":{"symbol":"NOPEUSDT"}}`)
	suite.Equal(MessageTypeError, response.Type)
}

func (suite *HubTestSuite) TestDispatchRecoversFromPanics() {
	suite.hub.handlers["explode"] = func(context.Context, json.RawMessage) (any, error) {
		panic("boom")
	}

	response := suite.dispatch(`{"type":"explode","requestId":"p"}`)
	suite.Equal(ErrMessageInternal, suite.errorText(response))
	suite.Equal(`"p"`, string(response.RequestID))
}
