// Command view is the default View Contract implementation: it follows
// Master's notifications and draws the board to standard output with
// ANSI cursor control.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dungeongate/chompchamps/internal/view"
	"github.com/dungeongate/chompchamps/pkg/logging"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <width> <height>\n", os.Args[0])
		os.Exit(2)
	}
	width, err := strconv.Atoi(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "view: bad width: %v\n", err)
		os.Exit(2)
	}
	height, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "view: bad height: %v\n", err)
		os.Exit(2)
	}

	logger := logging.NewLoggerBasic("view", logging.EnvOr("CHOMPCHAMPS_LOG_LEVEL", "info"), "text", "stderr")

	renderer := view.NewANSIRenderer(os.Stdout)
	if err := view.Run(width, height, renderer, logger); err != nil {
		logger.Error("view exited with error", "error", err)
		os.Exit(1)
	}
}
