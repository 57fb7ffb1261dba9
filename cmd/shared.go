package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gurneyalex/cubicweb-condor/internal/condor"
	"github.com/gurneyalex/cubicweb-condor/internal/config"
	"github.com/gurneyalex/cubicweb-condor/internal/reconcile"
	"github.com/gurneyalex/cubicweb-condor/internal/store"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
)

// ExitWithError prints an error message and exits with code 1
func ExitWithError(format string, a ...interface{}) {
	utils.PrintError(format, a...)
	os.Exit(1)
}

// newClient builds a condor client from the loaded configuration.
func newClient() *condor.Client {
	return condor.NewClientFromConfig(&config.Global)
}

// openStore opens the execution database or exits.
func openStore() *store.Store {
	st, err := store.Open(config.Global.DBPath)
	if err != nil {
		ExitWithError("Failed to open execution database %s: %v", utils.StylePath(config.Global.DBPath), err)
	}
	return st
}

// newReconciler wires a reconciler to the client's submission lock.
func newReconciler(client *condor.Client, st *store.Store) *reconcile.Reconciler {
	return reconcile.New(client, client.Lock(), reconcile.FromStore(st), utils.Console{})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			utils.PrintNote("Received signal: %v. Shutting down...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// commandResult prints the output of a condor command and turns a failed
// run into an error carrying that output.
func commandResult(command string, res condor.Result) error {
	if !res.OK() {
		return &condor.CommandError{Command: command, Result: res}
	}
	out := res.Output
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	fmt.Fprint(utils.Stdout, out)
	return nil
}
