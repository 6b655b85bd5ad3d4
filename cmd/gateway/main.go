// Command gateway runs the order-entry gateway process: it terminates
// client TCP sessions, parses FIX, and forwards normalized orders into the
// shared-memory ring for the sequencer to consume.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"ordergateway/internal/config"
	"ordergateway/internal/gateway"
	"ordergateway/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "gateway.xml", "path to the gateway XML configuration")
	prod := flag.Bool("prod", false, "use production (JSON) logging instead of the development console encoder")
	flag.Parse()

	// An optional first positional argument overrides the configured port.
	portOverride := -1
	if flag.NArg() > 0 {
		if _, err := fmt.Sscanf(flag.Arg(0), "%d", &portOverride); err != nil {
			fmt.Fprintf(os.Stderr, "gateway: invalid port override %q: %v\n", flag.Arg(0), err)
			return 1
		}
	}

	log, flush := logging.New(*prod, "gateway")
	defer flush()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Error("gateway: config load failed", "error", err)
		return 1
	}
	if portOverride >= 0 {
		cfg.Port = portOverride
	}

	gw, err := gateway.New(cfg, log)
	if err != nil {
		log.Error("gateway: startup failed", "error", err)
		return 1
	}

	if err := gw.Run(context.Background()); err != nil {
		log.Error("gateway: shutdown reported an error", "error", err)
		return 1
	}
	return 0
}
