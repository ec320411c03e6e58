package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/argo-paper-trading/internal/config"
	"github.com/rxtech-lab/argo-paper-trading/internal/events"
	"github.com/rxtech-lab/argo-paper-trading/internal/executor"
	"github.com/rxtech-lab/argo-paper-trading/internal/ledger"
	"github.com/rxtech-lab/argo-paper-trading/internal/logger"
	"github.com/rxtech-lab/argo-paper-trading/internal/marketdata"
	"github.com/rxtech-lab/argo-paper-trading/internal/orchestrator"
	"github.com/rxtech-lab/argo-paper-trading/internal/storage"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/stretchr/testify/suite"
)

type HubTestSuite struct {
	suite.Suite
	gateway storage.Gateway
	ledger  *ledger.Ledger
	hub     *Hub
	server  *httptest.Server
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubTestSuite))
}

func testServerConfig() config.ServerConfig {
	cfg := config.Default().Server
	cfg.SendQueueSize = 64
	cfg.PingInterval = time.Second
	cfg.PongTimeout = 5 * time.Second
	cfg.WriteTimeout = time.Second

	return cfg
}

func (suite *HubTestSuite) SetupTest() {
	ctx := context.Background()
	log := logger.NewNopLogger()

	gateway, err := storage.NewDuckDBGateway("", log)
	suite.Require().NoError(err)
	suite.Require().NoError(gateway.Initialize(ctx))
	suite.gateway = gateway

	settings := config.NewHolder(config.DefaultTrading())
	provider := marketdata.NewStaticProvider(map[string]float64{"BTCUSDT": 50000, "ETHUSDT": 2000})

	// the hub is the publisher of every component, so it is created before them
	var hub *Hub

	publisher := events.PublisherFunc(func(event types.Event) {
		hub.Publish(event)
	})

	suite.ledger = ledger.NewLedger(gateway, publisher, log)
	exec := executor.NewExecutor(suite.ledger, gateway, provider, settings, publisher, log)
	orch := orchestrator.NewOrchestrator(suite.ledger, exec, provider, settings, publisher, log)

	hub = NewHub(Services{
		Ledger:           suite.ledger,
		Orders:           exec,
		Signals:          orch,
		Settings:         gateway,
		MarketData:       provider,
		Trading:          settings,
		DefaultTimeframe: "1h",
	}, testServerConfig(), log)
	suite.hub = hub

	_, err = suite.ledger.EnsureAccount(ctx, ledger.BootstrapAccount{
		ID:             "acc-1",
		OwnerID:        "user-1",
		InitialBalance: 10000,
		Currency:       "USDT",
		Active:         true,
	})
	suite.Require().NoError(err)

	suite.server = httptest.NewServer(hub.Router())
}

func (suite *HubTestSuite) TearDownTest() {
	suite.hub.Close()
	suite.server.Close()
	suite.NoError(suite.gateway.Close())
}

func (suite *HubTestSuite) dial() *websocket.Conn {
	return suite.dialServer(suite.server)
}

func (suite *HubTestSuite) dialServer(server *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	suite.Require().NoError(err)

	// the first message is always the connection status
	var status struct {
		Type string           `json:"type"`
		Data ConnectionStatus `json:"data"`
	}

	suite.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	suite.Require().NoError(conn.ReadJSON(&status))
	suite.Equal(string(types.EventConnectionStatus), status.Type)
	suite.Equal("connected", status.Data.Status)
	suite.NotEmpty(status.Data.ConnectionID)

	return conn
}

// readUntil reads raw messages until one has the wanted type.
func (suite *HubTestSuite) readUntil(conn *websocket.Conn, messageType string) []byte {
	suite.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))

	for {
		_, raw, err := conn.ReadMessage()
		suite.Require().NoError(err)

		var envelope struct {
			Type string `json:"type"`
		}

		suite.Require().NoError(json.Unmarshal(raw, &envelope))

		if envelope.Type == messageType {
			return raw
		}
	}
}

func (suite *HubTestSuite) waitForConnections(count int) {
	suite.Eventually(func() bool {
		return suite.hub.ConnectionCount() == count
	}, 5*time.Second, 10*time.Millisecond)
}

func (suite *HubTestSuite) TestPingOverWebSocket() {
	conn := suite.dial()
	defer conn.Close()

	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","requestId":"r1"}`)))

	raw := suite.readUntil(conn, MessageTypePong)

	var response map[string]json.RawMessage
	suite.Require().NoError(json.Unmarshal(raw, &response))
	suite.JSONEq(`"r1"`, string(response["requestId"]))

	var data struct {
		Timestamp string `json:"timestamp"`
	}

	suite.Require().NoError(json.Unmarshal(response["data"], &data))

	_, err := time.Parse(time.RFC3339Nano, data.Timestamp)
	suite.NoError(err)
}

func (suite *HubTestSuite) TestSlowHandlerKeepsConnectionReadable() {
	cfg := testServerConfig()
	cfg.PingInterval = 10 * time.Second
	cfg.PongTimeout = 300 * time.Millisecond

	slowHub := NewHub(suite.hub.services, cfg, logger.NewNopLogger())
	register(slowHub, "slow_request", func(_ context.Context, _ struct{}) (any, error) {
		time.Sleep(450 * time.Millisecond)

		return map[string]string{"status": "done"}, nil
	})

	server := httptest.NewServer(slowHub.Router())
	defer server.Close()
	defer slowHub.Close()

	conn := suite.dialServer(server)
	defer conn.Close()

	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"slow_request","requestId":"s1"}`)))
	suite.readUntil(conn, responseType("slow_request"))

	// the handler outlived the read timeout; the next request must still be served
	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","requestId":"r2"}`)))
	suite.readUntil(conn, MessageTypePong)
}

func (suite *HubTestSuite) TestBroadcastReachesEveryConnection() {
	first := suite.dial()
	defer first.Close()

	second := suite.dial()
	defer second.Close()

	suite.waitForConnections(2)

	request := `{"type":"place_paper_trading_order","requestId":"o1",` +
		`"payload":{"accountId":"acc-1","symbol":"BTCUSDT","side":"BUY","quantity":0.01,"price":50000}}`
	suite.Require().NoError(first.WriteMessage(websocket.TextMessage, []byte(request)))

	fromFirst := suite.readUntil(first, string(types.EventAccountUpdated))
	fromSecond := suite.readUntil(second, string(types.EventAccountUpdated))

	suite.Equal(string(fromFirst), string(fromSecond))

	var envelope map[string]json.RawMessage
	suite.Require().NoError(json.Unmarshal(fromSecond, &envelope))
	suite.NotContains(envelope, "requestId")
	suite.Contains(envelope, "data")

	response := suite.readUntil(first, MessagePlaceOrder+"_response")
	suite.Contains(string(response), `"requestId":"o1"`)
}

func (suite *HubTestSuite) TestInvalidFrameKeepsConnectionOpen() {
	conn := suite.dial()
	defer conn.Close()

	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)))

	raw := suite.readUntil(conn, MessageTypeError)
	suite.JSONEq(`{"type":"error","data":{"message":"Invalid message format","code":900}}`, string(raw))

	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	raw = suite.readUntil(conn, MessageTypePong)
	suite.NotContains(string(raw), "requestId")
}

func (suite *HubTestSuite) TestDisconnectUnregisters() {
	conn := suite.dial()
	suite.waitForConnections(1)

	suite.Require().NoError(conn.Close())
	suite.waitForConnections(0)
}

func (suite *HubTestSuite) TestHealthz() {
	response, err := http.Get(suite.server.URL + "/healthz")
	suite.Require().NoError(err)
	defer response.Body.Close()

	suite.Equal(http.StatusOK, response.StatusCode)

	var body map[string]any
	suite.Require().NoError(json.NewDecoder(response.Body).Decode(&body))
	suite.Equal("ok", body["status"])
}

func (suite *HubTestSuite) TestBroadcastSkipsFullQueues() {
	cfg := testServerConfig()
	cfg.SendQueueSize = 1

	hub := NewHub(Services{}, cfg, logger.NewNopLogger())

	open := newConnection("open", nil, hub)
	open.open()
	hub.register(open)

	connecting := newConnection("connecting", nil, hub)
	hub.register(connecting)

	event := types.NewEvent(types.EventAccountUpdated, map[string]string{"id": "acc-1"})

	suite.Equal(1, hub.Broadcast(event), "only OPEN connections receive broadcasts")
	suite.Equal(0, hub.Broadcast(event), "a full queue drops the event")
	suite.Len(open.send, 1)
	suite.Empty(connecting.send)
}

func TestConnectionStateString(t *testing.T) {
	tests := map[ConnectionState]string{
		StateConnecting:     "CONNECTING",
		StateOpen:           "OPEN",
		StateClosed:         "CLOSED",
		ConnectionState(42): "UNKNOWN",
	}

	for state, expected := range tests {
		if state.String() != expected {
			t.Errorf("%d: expected %s, got %s", state, expected, state.String())
		}
	}
}

func TestOriginChecker(t *testing.T) {
	allowAll := originChecker(nil)
	restricted := originChecker([]string{"https://dashboard.example.com"})

	request := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}

		return r
	}

	if !allowAll(request("https://anything.example.com")) {
		t.Error("empty allow list must accept every origin")
	}

	if !restricted(request("https://dashboard.example.com")) {
		t.Error("allowed origin rejected")
	}

	if restricted(request("https://evil.example.com")) {
		t.Error("foreign origin accepted")
	}

	if !restricted(request("")) {
		t.Error("non-browser clients without an origin must be accepted")
	}
}
