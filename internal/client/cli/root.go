package cli

import (
	"context"
)

func (a *App) hasOpenPage() bool {
	return a.currentPage() != nil
}

// Root greets the user, offers to unlock the vault and serves the REPL
// until the user leaves.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to notesum (type 'help' for commands)")

	if _, ok := a.userID(); !ok {
		printlnFn("No access token configured: working offline. Use 'token <jwt>' to enable sync.")
	}
	_ = a.Unlock(ctx)

	runREPL(ctx, a, a.status, a.reader)
}
