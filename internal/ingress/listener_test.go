package ingress

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ordergateway/internal/fixproto"
	"ordergateway/internal/queue"
)

func startTestListener(t *testing.T, cfg Config) (*Listener, *queue.Queue) {
	t.Helper()
	q := queue.New(16)
	l := New(cfg, q, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run() }()

	// Give setupServer a moment to bind before tests dial in.
	deadline := time.Now().Add(2 * time.Second)
	for l.serverFd == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.NotZero(t, l.serverFd, "listener failed to bind in time")

	t.Cleanup(func() {
		l.Stop()
		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("listener did not stop in time")
		}
	})
	return l, q
}

func TestListenerSingleOrderReachesQueue(t *testing.T) {
	l, q := startTestListener(t, Config{Port: 19001, MaxEvents: 8, Backlog: 8})
	_ = l

	conn, err := net.Dial("tcp", "127.0.0.1:19001")
	require.NoError(t, err)

	_, err = conn.Write([]byte("8=FIX.4.2\x0135=D\x0155=AAPL\x0154=1\x0138=100\x0144=150.50\x01"))
	require.NoError(t, err)
	// a single order with no follow-up message is only confirmed complete
	// once the connection closes (S1/S5): closing here is the client
	// disconnecting after sending its one order, not test cleanup.
	require.NoError(t, conn.Close())

	v, drained := popWithTimeout(t, q)
	require.False(t, drained)
	pkt := v.(fixproto.RawPacket)
	require.Contains(t, string(pkt.Bytes), "55=AAPL")
}

func TestListenerFanIn(t *testing.T) {
	l, q := startTestListener(t, Config{Port: 19002, MaxEvents: 16, Backlog: 16})
	_ = l

	qtys := []string{"50", "100", "150", "200", "250"}
	for _, qty := range qtys {
		conn, err := net.Dial("tcp", "127.0.0.1:19002")
		require.NoError(t, err)
		msg := "35=D\x0155=MSFT\x0154=1\x0138=" + qty + "\x0144=10.00\x01"
		_, err = conn.Write([]byte(msg))
		require.NoError(t, err)
		require.NoError(t, conn.Close())
	}

	seen := make(map[string]bool)
	for i := 0; i < len(qtys); i++ {
		v, drained := popWithTimeout(t, q)
		require.False(t, drained)
		pkt := v.(fixproto.RawPacket)
		f, err := fixproto.Parse(pkt.Bytes)
		require.NoError(t, err)
		seen[strconv.FormatInt(f.Quantity, 10)] = true
	}
	for _, qty := range qtys {
		require.True(t, seen[qty], "missing quantity %s", qty)
	}
}

func TestListenerReassemblesMessageAcrossWrites(t *testing.T) {
	l, q := startTestListener(t, Config{Port: 19004, MaxEvents: 8, Backlog: 8})
	_ = l

	conn, err := net.Dial("tcp", "127.0.0.1:19004")
	require.NoError(t, err)

	full := "8=FIX.4.2\x0135=D\x0155=AAPL\x0154=1\x0138=100\x0144=150.50\x01"
	_, err = conn.Write([]byte(full[:15]))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond) // let the split first half land alone
	_, err = conn.Write([]byte(full[15:]))
	require.NoError(t, err)
	// no follow-up message ever arrives to confirm this one's boundary, so
	// the client disconnecting is what flushes it, same as TestListenerSingleOrderReachesQueue.
	require.NoError(t, conn.Close())

	v, drained := popWithTimeout(t, q)
	require.False(t, drained)
	pkt := v.(fixproto.RawPacket)
	f, err := fixproto.Parse(pkt.Bytes)
	require.NoError(t, err)
	require.Equal(t, "AAPL", f.Symbol)
}

func TestListenerSplitsTwoMessagesInOneWrite(t *testing.T) {
	l, q := startTestListener(t, Config{Port: 19005, MaxEvents: 8, Backlog: 8})
	_ = l

	conn, err := net.Dial("tcp", "127.0.0.1:19005")
	require.NoError(t, err)

	msg1 := "8=FIX.4.2\x0135=D\x0155=AAPL\x0154=1\x0138=100\x0144=150.50\x01"
	msg2 := "8=FIX.4.2\x0135=D\x0155=MSFT\x0154=2\x0138=200\x0144=250.00\x01"
	_, err = conn.Write([]byte(msg1 + msg2))
	require.NoError(t, err)
	// msg2's boundary confirms msg1; nothing follows msg2, so the client
	// disconnecting is what flushes it.
	require.NoError(t, conn.Close())

	seen := make(map[string]bool)
	for i := 0; i < 2; i++ {
		v, drained := popWithTimeout(t, q)
		require.False(t, drained)
		pkt := v.(fixproto.RawPacket)
		f, err := fixproto.Parse(pkt.Bytes)
		require.NoError(t, err)
		seen[f.Symbol] = true
	}
	require.True(t, seen["AAPL"])
	require.True(t, seen["MSFT"])
}

func TestListenerClosesConnectionOnRateLimitExceeded(t *testing.T) {
	l, q := startTestListener(t, Config{
		Port: 19006, MaxEvents: 8, Backlog: 8,
		RatePerSec: 1, RateBurst: 1,
	})
	_ = l

	conn, err := net.Dial("tcp", "127.0.0.1:19006")
	require.NoError(t, err)
	defer conn.Close()

	msg := []byte("8=FIX.4.2\x0135=D\x0155=AAPL\x0154=1\x0138=100\x0144=150.50\x01")
	// first send consumes the single burst token; with no following message
	// to confirm its boundary it stays buffered for now.
	_, err = conn.Write(msg)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond) // let the first send land in its own read

	// second send immediately after exceeds the bucket and the connection
	// should be torn down rather than silently dropped; the teardown flushes
	// the buffered first message to the queue.
	_, err = conn.Write(msg)
	require.NoError(t, err)
	v, drained := popWithTimeout(t, q)
	require.False(t, drained)
	require.Contains(t, string(v.(fixproto.RawPacket).Bytes), "AAPL")

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(buf)
	require.Error(t, err, "server should have closed the connection")
}

func TestListenerStopClosesQueue(t *testing.T) {
	q := queue.New(4)
	l := New(Config{Port: 19003, MaxEvents: 4, Backlog: 4}, q, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run() }()

	deadline := time.Now().Add(2 * time.Second)
	for l.serverFd == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	l.Stop()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not stop in time")
	}
	require.True(t, q.Closed())
}

func popWithTimeout(t *testing.T, q *queue.Queue) (interface{}, bool) {
	t.Helper()
	type result struct {
		v       interface{}
		drained bool
	}
	ch := make(chan result, 1)
	go func() {
		v, drained := q.Pop()
		ch <- result{v, drained}
	}()
	select {
	case r := <-ch:
		return r.v, r.drained
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for queue item")
		return nil, false
	}
}
