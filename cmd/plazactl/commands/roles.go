package commands

import (
	"github.com/spf13/cobra"

	"plaza.social/internal/admin"
)

func newRolesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Args:  cobra.NoArgs,
		Short: "Print the role to permission table as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := admin.PermissionTableYAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
