package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"plaza.social/internal/auth"
)

func newSetRoleCommand(opts *rootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:     "set-role USER_ID ROLE",
		Args:    cobra.ExactArgs(2),
		Short:   "Assign a role on behalf of the --as administrator",
		Example: "plazactl set-role --as <admin-id> <user-id> verified_user --reason 'identity checked'",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.actor == "" {
				return errors.New("--as is required")
			}
			role := auth.ParseRole(args[1])
			if !role.Valid() {
				return fmt.Errorf("unknown role %q", args[1])
			}
			a, err := opts.app(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, actor, err := a.AccessFor(cmd.Context(), opts.actor)
			if err != nil {
				return err
			}
			assignment, err := a.Admin.SetRole(ctx, actor, args[0], role, reason)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(map[string]any{
				"user_id":       assignment.UserID,
				"role":          assignment.Role.String(),
				"previous_role": assignment.PreviousRole.String(),
				"reason":        assignment.Reason,
				"assigned_by":   assignment.AssignedBy,
				"assigned_at":   assignment.AssignedAt,
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the role changes (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}
