package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/charlesng35/adboard/internal/services"
	"github.com/charlesng35/adboard/internal/workspacectx"
)

func workspaceCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "List, create and switch workspaces",
	}

	cmd.AddCommand(
		workspaceListCommand(opts),
		workspaceCurrentCommand(opts),
		workspaceSwitchCommand(opts),
		workspaceCreateCommand(opts),
	)
	return cmd
}

func workspaceListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your workspaces",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sync, _, err := opts.synchronizer(true)
			if err != nil {
				return err
			}
			snap, err := sync.Mount(cmd.Context())
			if err != nil {
				return err
			}

			if len(snap.Workspaces) == 0 {
				cmd.Println("You are not a member of any workspace. Create one with: adboard workspace create <name>")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\tID\tNAME\tSLUG\tROLE\tDEFAULT")
			for _, ws := range snap.Workspaces {
				marker := ""
				if ws.Workspace.ID == snap.CurrentID {
					marker = "*"
				}
				isDefault := ""
				if ws.Membership.IsDefault {
					isDefault = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					marker, ws.Workspace.ID, ws.Workspace.Name, ws.Workspace.Slug, ws.Membership.Role, isDefault)
			}
			return w.Flush()
		},
	}
}

func workspaceCurrentCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the current workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sync, _, err := opts.synchronizer(true)
			if err != nil {
				return err
			}
			snap, err := sync.Mount(cmd.Context())
			if err != nil {
				return err
			}

			current, ok := snap.Current()
			if !ok {
				cmd.Println("No current workspace")
				return nil
			}
			printMembership(cmd, current)
			return nil
		},
	}
}

func workspaceSwitchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "switch ID|SLUG",
		Short: "Make a workspace current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sync, _, err := opts.synchronizer(true)
			if err != nil {
				return err
			}
			snap, err := sync.Mount(cmd.Context())
			if err != nil {
				return err
			}

			target := lookupWorkspace(snap, args[0])
			if target == nil {
				return fmt.Errorf("workspace %q not found among your memberships", args[0])
			}

			snap, err = sync.Switch(cmd.Context(), target.Workspace.ID)
			if err != nil {
				return err
			}
			sync.Flush()

			current, _ := snap.Current()
			cmd.Printf("Switched to %s\n", current.Workspace.Name)
			return nil
		},
	}
}

func workspaceCreateCommand(opts *rootOptions) *cobra.Command {
	var description string

	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a workspace you own",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sync, _, err := opts.synchronizer(true)
			if err != nil {
				return err
			}
			if _, err := sync.Mount(cmd.Context()); err != nil {
				return err
			}

			var desc *string
			if cmd.Flags().Changed("description") {
				desc = &description
			}
			created, _, err := sync.CreateWorkspace(cmd.Context(), strings.Join(args, " "), desc)
			if err != nil {
				return err
			}
			cmd.Printf("Created %s (%s)\n", created.Workspace.Name, created.Workspace.ID)
			return nil
		},
	}

	createCmd.Flags().StringVarP(&description, "description", "d", "", "Workspace description")
	return createCmd
}

func lookupWorkspace(snap workspacectx.Snapshot, ref string) *services.WorkspaceMembership {
	for i := range snap.Workspaces {
		ws := &snap.Workspaces[i]
		if ws.Workspace.ID == ref || strings.EqualFold(ws.Workspace.Slug, ref) {
			return ws
		}
	}
	return nil
}

func printMembership(cmd *cobra.Command, m *services.WorkspaceMembership) {
	cmd.Printf("ID:    %s\n", m.Workspace.ID)
	cmd.Printf("Name:  %s\n", m.Workspace.Name)
	cmd.Printf("Slug:  %s\n", m.Workspace.Slug)
	cmd.Printf("Role:  %s\n", m.Membership.Role)
}
