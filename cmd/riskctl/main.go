// Command riskctl operates the risk tracker from the shell: import and export
// workbooks, render the PDF report, apply the schema and run the server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "riskctl:", err)
		stop()
		os.Exit(1)
	}
}
