package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"operaciones/internal/amqp"
	"operaciones/internal/api"
	"operaciones/internal/log"
)

// Deps is what the terminal client needs from the outside world.
type Deps struct {
	// Open builds the repository on first use. The returned cleanup runs
	// after the command finishes.
	Open func() (api.Repository, func() error, error)
	// Watch streams mutation events until ctx ends. Nil disables the
	// watch command.
	Watch  func(ctx context.Context, handle func(*amqp.OperationEvent) error) error
	In     io.Reader
	Out    io.Writer
	Logger *log.Logger
}

type app struct {
	deps    Deps
	repo    api.Repository
	cleanup func() error
}

// repository opens the backend once per process.
func (a *app) repository() (api.Repository, error) {
	if a.repo != nil {
		return a.repo, nil
	}
	if a.deps.Open == nil {
		return nil, errors.New("no backend configured")
	}
	repo, cleanup, err := a.deps.Open()
	if err != nil {
		return nil, err
	}
	a.repo, a.cleanup = repo, cleanup
	return repo, nil
}

func (a *app) close() error {
	if a.cleanup == nil {
		return nil
	}
	err := a.cleanup()
	a.cleanup = nil
	return err
}

func (a *app) notifier() consoleNotifier {
	return consoleNotifier{out: a.deps.Out}
}

// Execute runs the command line in args and releases the backend
// afterwards, whether the command succeeded or not.
func Execute(ctx context.Context, deps Deps, args []string) error {
	rootCmd, a := newRootCmd(deps)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

// NewRootCmd assembles the operaciones command tree. The caller owns
// closing the backend; Execute does it.
func NewRootCmd(deps Deps) *cobra.Command {
	rootCmd, _ := newRootCmd(deps)
	return rootCmd
}

func newRootCmd(deps Deps) (*cobra.Command, *app) {
	if deps.In == nil {
		deps.In = os.Stdin
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	a := &app{deps: deps}

	rootCmd := &cobra.Command{
		Use:   "operaciones",
		Short: "Manage credit operations from the terminal",
		Long: `operaciones lists, searches, creates, edits and deletes credit operations
against the configured backend (REST API, SQLite or in-memory).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(deps.In)
	rootCmd.SetOut(deps.Out)

	rootCmd.AddCommand(a.listCmd())
	rootCmd.AddCommand(a.showCmd())
	rootCmd.AddCommand(a.createCmd())
	rootCmd.AddCommand(a.editCmd())
	rootCmd.AddCommand(a.deleteCmd())
	rootCmd.AddCommand(a.chartCmd())
	rootCmd.AddCommand(a.creditTypesCmd())
	if deps.Watch != nil {
		rootCmd.AddCommand(a.watchCmd())
	}
	return rootCmd, a
}
