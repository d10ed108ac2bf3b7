package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pricecast/internal/predictor"
	"github.com/fyrsmithlabs/pricecast/internal/session"
	"github.com/fyrsmithlabs/pricecast/internal/tui"
)

func newFormCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "form",
		Short: "Open the interactive prediction form",
		Long: `Open a terminal form with one field per housing feature.

Keys:
  tab / shift+tab   move between fields
  enter             submit (disabled while a prediction is pending)
  esc / ctrl+c      quit

The banner follows the local session, so signing in from another terminal
updates it live.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			rec, _ := a.store.Load(ctx)
			model := tui.NewModel(ctx, predictor.NewForm(client, a.cfg.Policy()), rec)

			p := tea.NewProgram(model,
				tea.WithContext(ctx),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
				tea.WithAltScreen(),
			)

			go func() {
				err := session.Watch(ctx, a.storage.Dir(), a.cfg.Session.Key,
					func(rec *session.Record, _ bool) {
						p.Send(tui.SessionMsg{Record: rec})
					},
					a.logger.Named("watch"),
				)
				if err != nil {
					a.logger.Warn(ctx, "session watch stopped", zap.Error(err))
				}
			}()

			_, err = p.Run()
			return err
		},
	}
}
