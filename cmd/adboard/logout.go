package main

import (
	"github.com/spf13/cobra"

	"github.com/charlesng35/adboard/internal/workspacectx"
)

func logoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the locally cached workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sync, store, err := opts.synchronizer(false)
			if err != nil {
				return err
			}
			if _, err := sync.HandleAuthEvent(cmd.Context(), workspacectx.SignedOut); err != nil {
				return err
			}
			cmd.Printf("Cleared workspace state in %s\n", store.Path())
			return nil
		},
	}
}
