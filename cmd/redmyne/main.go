// Command redmyne is an offline-first weekly timesheet editor for
// Redmine-compatible servers. Edits queue locally as draft operations and are
// applied to the server in one explicit commit pass.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
)

// version stores a package-level helper value.
var version = "dev"

// main handles main.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := fang.Execute(ctx, NewRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}
