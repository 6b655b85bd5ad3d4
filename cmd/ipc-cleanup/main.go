// Command ipc-cleanup removes a ring's shared-memory segment, session side
// file, and both role lock files. The producer never unlinks these on clean
// shutdown (spec §4.1 Teardown), so a crashed or replaced gateway can leave
// them behind; this reclaims them explicitly.
package main

import (
	"flag"
	"fmt"
	"os"

	"ordergateway/internal/ipc"
)

func main() {
	queueName := flag.String("queue", "", "IPC queue name to remove")
	flag.Parse()

	if *queueName == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := ipc.Cleanup(*queueName); err != nil {
		fmt.Fprintf(os.Stderr, "ipc-cleanup: %v\n", err)
		os.Exit(1)
	}
}
