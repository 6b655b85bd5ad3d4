package monitor

import (
	"encoding/json"
	"log/slog"
	"net"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/net/netutil"
)

var upgrader = websocket.Upgrader{}

// method names a subscribe/unsubscribe request from a monitor client.
type method string

const (
	methodSubscribe   method = "subscribe"
	methodUnsubscribe method = "unsubscribe"
)

// clientRequest is what a monitor websocket client sends to change its
// symbol subscriptions, mirroring the reference MessageFromUser envelope.
type clientRequest struct {
	Method method   `json:"method"`
	Params []string `json:"params"`
}

// wsClient adapts one websocket connection to the Client interface the hub
// broadcasts through, decoupling the hub's fan-out from socket write speed.
type wsClient struct {
	conn   *websocket.Conn
	sendCh chan []byte
}

func (c *wsClient) SendCh() chan []byte { return c.sendCh }

// Server hosts the read-only order-flow websocket endpoint.
type Server struct {
	hub  *Hub
	log  *slog.Logger
	echo *echo.Echo
}

// NewServer builds a monitor Server backed by hub.
func NewServer(hub *Hub, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{hub: hub, log: log, echo: echo.New()}
	s.echo.GET("/ws", s.wsHandler)
	return s
}

// Serve accepts connections on addr, capped at maxConns concurrent sockets
// via golang.org/x/net/netutil.LimitListener — there is no per-connection
// resource ceiling in the reference server, and an unbounded websocket feed
// is a fine way for a runaway monitoring tool to take the gateway down.
func (s *Server) Serve(addr string, maxConns int) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	s.log.Info("monitor server listening", "addr", addr, "maxConns", maxConns)
	s.echo.Listener = ln
	return s.echo.Start("")
}

// Shutdown stops the server's echo instance.
func (s *Server) Shutdown() error {
	return s.echo.Close()
}

func (s *Server) wsHandler(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("monitor: websocket upgrade failed", "error", err)
		return err
	}
	client := &wsClient{conn: conn, sendCh: make(chan []byte, 256)}

	go s.writePump(client)
	s.readPump(client)
	return nil
}

func (s *Server) writePump(c *wsClient) {
	defer c.conn.Close()
	for payload := range c.sendCh {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (s *Server) readPump(c *wsClient) {
	subscribed := make(map[string]bool)
	defer func() {
		for symbol := range subscribed {
			s.hub.Unsubscribe(symbol, c)
		}
		close(c.sendCh)
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req clientRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			s.log.Warn("monitor: malformed client request", "error", err)
			continue
		}
		if len(req.Params) == 0 {
			continue
		}
		symbol := req.Params[0]
		switch req.Method {
		case methodSubscribe:
			s.hub.Subscribe(symbol, c)
			subscribed[symbol] = true
		case methodUnsubscribe:
			s.hub.Unsubscribe(symbol, c)
			delete(subscribed, symbol)
		}
	}
}
