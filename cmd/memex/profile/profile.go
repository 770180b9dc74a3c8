// Package profilecmder provides the profile command for selecting the
// active persona profile.
package profilecmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/dotdir"
)

const profileLongDesc string = `Select the active persona profile.

Data commands (recall, facts, events, audit) need a profile; "use" saves
one so you do not have to pass --profile every time.

Examples:
  memex profile use nicky
  memex profile show
  memex profile clear`

const profileShortDesc string = "Select the active persona profile"

func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: profileShortDesc,
		Long:  profileLongDesc,
	}

	cmd.AddCommand(newUseCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newClearCmd())

	return cmd
}

func configDir(cmd *cobra.Command) (string, error) {
	dir, err := cmd.Flags().GetString("config-dir")
	if err != nil {
		return "", fmt.Errorf("could not get config-dir flag: %w", err)
	}
	return dir, nil
}

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <profile-id>",
		Short: "Save a profile as the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := configDir(cmd)
			if err != nil {
				return err
			}

			state := &dotdir.ProfileState{ProfileID: args[0]}
			if err := dotdir.NewManager().SaveProfileState(state, dir); err != nil {
				return err
			}

			fmt.Printf("\n  %s Active profile is now %s\n\n",
				cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := configDir(cmd)
			if err != nil {
				return err
			}

			state, err := dotdir.NewManager().LoadProfileState(dir)
			if err != nil {
				return err
			}
			if state == nil || state.ProfileID == "" {
				fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No active profile. Run \"memex profile use <id>\"."))
				return nil
			}

			fmt.Printf("\n  %s %s\n\n",
				cliui.KeyStyle.Render("active profile:"),
				cliui.NameStyle.Render(state.ProfileID))
			return nil
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the active profile selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := configDir(cmd)
			if err != nil {
				return err
			}

			if err := dotdir.NewManager().ClearProfileState(dir); err != nil {
				return err
			}

			fmt.Printf("\n  %s Active profile cleared\n\n", cliui.SuccessMark)
			return nil
		},
	}
}
