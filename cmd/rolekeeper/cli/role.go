package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/faucetdb/rolekeeper/internal/catalog"
)

func newRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Inspect roles and the permission catalog",
	}

	cmd.AddCommand(newRoleOptionsCmd())

	return cmd
}

// ---------- role options ----------

func newRoleOptionsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "options",
		Aliases: []string{"ls", "list"},
		Short:   "List roles with their default permissions, and every permission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoleOptions(cmd.OutOrStdout(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runRoleOptions(out io.Writer, jsonOutput bool) error {
	opts := catalog.RoleOptions()
	if jsonOutput {
		return printJSON(out, opts)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tLABEL\tACCESS\tDEFAULT PERMISSIONS")
	for _, r := range opts.Roles {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Value, r.Label, r.AccessLevel, strings.Join(r.DefaultPermissions, ", "))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "PERMISSION\tMODULE\tLABEL")
	for _, p := range opts.Permissions {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Key, p.Module, p.Label)
	}
	return tw.Flush()
}
