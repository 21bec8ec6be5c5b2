package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/oneway/pkg/logger"
)

func TestHandleMessageTrade(t *testing.T) {
	c := NewClient(DefaultWSURL, "btcusd", logger.NewNop())

	var trades []*Trade
	c.OnTrade(func(tr *Trade) { trades = append(trades, tr) })

	frame := `{
		"type": "update",
		"eventId": 5375547515,
		"events": [
			{"type": "change", "price": "3632.54", "side": "ask"},
			{"type": "trade", "tid": 1, "price": "3632.54", "amount": "0.1362", "makerSide": "ask"},
			{"type": "trade", "tid": 2, "price": "bogus", "amount": "1", "makerSide": "bid"}
		]
	}`
	c.handleMessage([]byte(frame))

	// one valid trade: the change event and the unparseable price are dropped
	require.Len(t, trades, 1)
	assert.InDelta(t, 3632.54, trades[0].Price, 1e-9)
	assert.InDelta(t, 0.1362, trades[0].Amount, 1e-9)
	assert.Equal(t, "ask", trades[0].MakerSide)
	assert.Equal(t, "btcusd", trades[0].Symbol)
}

func TestHandleMessageHeartbeat(t *testing.T) {
	c := NewClient(DefaultWSURL, "btcusd", logger.NewNop())

	called := false
	c.OnTrade(func(*Trade) { called = true })

	c.handleMessage([]byte(`{"type": "heartbeat"}`))
	c.handleMessage([]byte(`not json at all`))

	assert.False(t, called)
}

func TestClientReceivesTrades(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping websocket test in short mode")
	}

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/btcusd"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		frames := []string{
			`{"type":"update","eventId":1,"events":[{"type":"trade","tid":1,"price":"40100.25","amount":"0.5","makerSide":"bid"}]}`,
			`{"type":"heartbeat"}`,
			`{"type":"update","eventId":2,"events":[{"type":"trade","tid":2,"price":"40220.00","amount":"0.1","makerSide":"ask"}]}`,
		}
		for _, f := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
		}

		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client := NewClient(wsURL, "btcusd", logger.NewNop())

	received := make(chan *Trade, 4)
	client.OnTrade(func(tr *Trade) { received <- tr })

	require.NoError(t, client.Connect(context.Background()))
	assert.True(t, client.IsConnected())

	var trades []*Trade
	for len(trades) < 2 {
		select {
		case tr := <-received:
			trades = append(trades, tr)
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for trades")
		}
	}

	assert.InDelta(t, 40100.25, trades[0].Price, 1e-9)
	assert.InDelta(t, 40220.00, trades[1].Price, 1e-9)

	require.NoError(t, client.Disconnect())
	assert.False(t, client.IsConnected())
}
