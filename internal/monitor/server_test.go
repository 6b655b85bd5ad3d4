package monitor

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(2, nil)
	hub.Start()
	srv := NewServer(hub, nil)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)
	return ts, hub
}

func dialMonitor(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + ts.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServerSubscribeReceivesPublishedEvent(t *testing.T) {
	ts, hub := newTestServer(t)
	conn := dialMonitor(t, ts)

	req := clientRequest{Method: methodSubscribe, Params: []string{"AAPL"}}
	require.NoError(t, conn.WriteJSON(req))
	time.Sleep(20 * time.Millisecond)

	hub.Publish(OrderFlowEvent{OrderID: 7, Symbol: "AAPL", Quantity: 100, Price: 1230000})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var ev OrderFlowEvent
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, uint64(7), ev.OrderID)
	require.Equal(t, "AAPL", ev.Symbol)
}

func TestServerUnsubscribeStopsDelivery(t *testing.T) {
	ts, hub := newTestServer(t)
	conn := dialMonitor(t, ts)

	require.NoError(t, conn.WriteJSON(clientRequest{Method: methodSubscribe, Params: []string{"MSFT"}}))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, conn.WriteJSON(clientRequest{Method: methodUnsubscribe, Params: []string{"MSFT"}}))
	time.Sleep(20 * time.Millisecond)

	hub.Publish(OrderFlowEvent{OrderID: 1, Symbol: "MSFT", Quantity: 10})

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected read deadline to expire, no message should arrive")
}

func TestServerMalformedRequestIsIgnored(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialMonitor(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	// the connection should stay open and keep processing subsequent valid requests.
	require.NoError(t, conn.WriteJSON(clientRequest{Method: methodSubscribe, Params: []string{"AAPL"}}))
	time.Sleep(20 * time.Millisecond)
}

func TestClientRequestJSONShape(t *testing.T) {
	var req clientRequest
	require.NoError(t, json.Unmarshal([]byte(`{"method":"subscribe","params":["AAPL"]}`), &req))
	require.Equal(t, methodSubscribe, req.Method)
	require.Equal(t, []string{"AAPL"}, req.Params)
}
