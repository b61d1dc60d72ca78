package main

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nikbrunner/bmsync/internal/config"
	"github.com/nikbrunner/bmsync/internal/tui"
)

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "bmsync",
		Short: "Bookmarks synced with a GraphQL API",
		Long: `bmsync keeps a local view of your bookmarks in sync with a GraphQL
bookmarks API. Changes made by other clients arrive over the realtime
channel and show up immediately.

Without a subcommand it opens the interactive TUI.

TUI keybindings:
  j/k, gg/G   move, jump to top/bottom
  o/Enter     open in browser
  Y           copy URL
  /           fuzzy filter
  a, e, d     add, edit, delete
  r           refetch
  v           selection mode (space toggles, D deletes selected)
  q           quit`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				configPath = p
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), configPath)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/bmsync/config.yaml)")

	rootCmd.AddCommand(
		newListCmd(&configPath),
		newOpenCmd(&configPath),
		newImportCmd(&configPath),
		newExportCmd(&configPath),
		newCullCmd(&configPath),
		newServeCmd(&configPath),
		newProvisionCmd(&configPath),
	)
	return rootCmd
}

// runTUI shows the cached bookmarks right away, then fetches and listens
// for changes while the TUI runs.
func runTUI(parent context.Context, configPath string) error {
	s, err := openSession(configPath, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.store.Restore(); err != nil {
		s.logger.Warn("ignoring unreadable cache", zap.Error(err))
	}

	rt, err := s.realtime()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	listenDone := make(chan struct{})
	go func() {
		defer close(listenDone)
		if err := s.store.Listen(ctx, rt); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("push channel stopped", zap.Error(err))
		}
	}()

	app := tui.NewApp(tui.AppParams{Context: ctx, Store: s.store})
	_, err = tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run()

	cancel()
	<-listenDone
	if errors.Is(err, tea.ErrProgramKilled) && parent.Err() != nil {
		return nil
	}
	return err
}
