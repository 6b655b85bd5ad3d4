// Command sequencer attaches to the gateway's IPC ring as consumer and logs
// each decoded order. It stands in for the real sequencer's matching-engine
// forwarding, which is out of scope here (spec §1) — this exists so the
// ring can be exercised end to end from a second process.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ordergateway/internal/ipc"
	"ordergateway/internal/logging"
	"ordergateway/internal/wire"
)

func main() {
	os.Exit(run())
}

func run() int {
	queueName := flag.String("queue", "", "IPC queue name to attach to (must match the gateway's Ipc/QueueName)")
	prod := flag.Bool("prod", false, "use production (JSON) logging")
	flag.Parse()

	if *queueName == "" {
		flag.Usage()
		return 1
	}

	log, flush := logging.New(*prod, "sequencer")
	defer flush()

	consumer, err := ipc.AttachConsumer(*queueName, log)
	if err != nil {
		log.Error("sequencer: attach failed", "error", err)
		return 1
	}
	defer consumer.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	buf := make([]byte, ipc.MaxMsgSize)
	for {
		select {
		case <-stop:
			log.Info("sequencer: shutting down")
			return 0
		default:
		}

		n := consumer.Read(buf)
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}

		m, err := wire.Decode(buf[:n])
		if err != nil {
			log.Warn("sequencer: decode failed", "error", err)
			continue
		}
		logOrder(log, m)
	}
}

func logOrder(log *slog.Logger, m *wire.Message) {
	symbol, _ := m.GetString(wire.FieldSymbol)
	side, _ := m.GetUint64(wire.FieldSide)
	price, _ := m.GetInt64(wire.FieldPrice)
	qty, _ := m.GetInt64(wire.FieldQty)
	orderID, _ := m.GetUint64(wire.FieldOrderID)
	log.Info("sequencer: order received",
		"orderId", orderID, "symbol", symbol, "side", side, "price", price, "qty", qty)
}
