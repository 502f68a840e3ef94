package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/faucetdb/rolekeeper/internal/catalog"
	"github.com/faucetdb/rolekeeper/internal/config"
	"github.com/faucetdb/rolekeeper/internal/errutil"
	"github.com/faucetdb/rolekeeper/internal/model"
	"github.com/faucetdb/rolekeeper/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
		Long:  "Create, inspect and edit administrator accounts directly against the admin store.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminShowCmd())
	cmd.AddCommand(newAdminSetRoleCmd())
	cmd.AddCommand(newAdminPermissionCmd("grant"))
	cmd.AddCommand(newAdminPermissionCmd("revoke"))

	return cmd
}

// withStore runs fn against the configured admin store.
func withStore(fn func(ctx context.Context, cfg *config.YAMLConfig, store *config.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(context.Background(), cfg, store)
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		name     string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin account",
		Example: `  rolekeeper admin create --email root@example.com --role super_admin
  rolekeeper admin create --email ops@example.com --name "Ops" --password secret123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				p, err := promptPassword()
				if err != nil {
					return err
				}
				password = p
			}
			return withStore(func(ctx context.Context, _ *config.YAMLConfig, store *config.Store) error {
				return runAdminCreate(ctx, cmd.OutOrStdout(), store, email, password, name, role)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "Admin display name (defaults to the email)")
	cmd.Flags().StringVar(&role, "role", string(model.RoleRegularAdmin), "Role: regular_admin or super_admin")
	cmd.MarkFlagRequired("email")

	return cmd
}

func promptPassword() (string, error) {
	fmt.Print("Password: ")
	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Println()

	if string(pwBytes) != string(confirmBytes) {
		return "", errors.New("passwords do not match")
	}
	return string(pwBytes), nil
}

// runAdminCreate registers a new account at version 0 with the role's
// default permission set.
func runAdminCreate(ctx context.Context, out io.Writer, store *config.Store, email, password, name, roleName string) error {
	normalized, err := service.NormalizeEmail(email)
	if err != nil {
		return fmt.Errorf("invalid email address %q", email)
	}
	role, err := model.ParseRole(roleName)
	if err != nil {
		return err
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if strings.TrimSpace(name) == "" {
		name = normalized
	}

	hash, err := service.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &model.Admin{
		Email:        normalized,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Role:         role,
		Permissions:  catalog.DefaultPermissionsFor(role),
		IsActive:     true,
	}
	if err := store.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, config.ErrEmailTaken) {
			return fmt.Errorf("an admin with email %q already exists", normalized)
		}
		return err
	}

	fmt.Fprintf(out, "Created %s %q (id %d, access level %d)\n",
		admin.Role.Label(), admin.Email, admin.ID, admin.AccessLevel)
	return nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var (
		jsonOutput bool
		role       string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List admin accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, _ *config.YAMLConfig, store *config.Store) error {
				return runAdminList(ctx, cmd.OutOrStdout(), store, role, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&role, "role", "", "Only list admins with this role")

	return cmd
}

func runAdminList(ctx context.Context, out io.Writer, store *config.Store, roleName string, jsonOutput bool) error {
	var filter config.AdminFilter
	if roleName != "" {
		role, err := model.ParseRole(roleName)
		if err != nil {
			return err
		}
		filter.Role = role
	}

	admins, err := store.ListAdmins(ctx, filter)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out, admins)
	}

	if len(admins) == 0 {
		fmt.Fprintln(out, "No admin accounts. Use 'rolekeeper admin create' to create one.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tACCESS\tVERSION\tACTIVE")
	for _, a := range admins {
		active := "yes"
		if !a.IsActive {
			active = "no"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
			a.ID, a.Email, a.Name, a.Role.Label(), a.AccessLevel, a.Version, active)
	}
	return tw.Flush()
}

// ---------- admin show ----------

func newAdminShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one admin account with its permissions and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withStore(func(ctx context.Context, _ *config.YAMLConfig, store *config.Store) error {
				return runAdminShow(ctx, cmd.OutOrStdout(), store, id, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminShow(ctx context.Context, out io.Writer, store *config.Store, id int64, jsonOutput bool) error {
	admin, err := store.GetAdmin(ctx, id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return fmt.Errorf("admin %d not found", id)
		}
		return err
	}
	history, err := store.ListAuditEntries(ctx, id, 10)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out, map[string]interface{}{"admin": admin, "history": history})
	}

	fmt.Fprintf(out, "ID:           %d\n", admin.ID)
	fmt.Fprintf(out, "Email:        %s\n", admin.Email)
	fmt.Fprintf(out, "Name:         %s\n", admin.Name)
	fmt.Fprintf(out, "Role:         %s\n", admin.Role.Label())
	fmt.Fprintf(out, "Access level: %d\n", admin.AccessLevel)
	fmt.Fprintf(out, "Version:      %d\n", admin.Version)
	fmt.Fprintf(out, "Active:       %t\n", admin.IsActive)
	fmt.Fprintln(out, "Permissions:")
	if len(admin.Permissions) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, p := range admin.Permissions {
		fmt.Fprintf(out, "  %s\n", p)
	}
	if len(history) > 0 {
		fmt.Fprintln(out, "Recent changes:")
		for _, e := range history {
			fmt.Fprintf(out, "  %s  %-26s by %d: %s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.ActorID, e.Details)
		}
	}
	return nil
}

// ---------- admin set-role ----------

func newAdminSetRoleCmd() *cobra.Command {
	var (
		role    string
		actorID int64
	)

	cmd := &cobra.Command{
		Use:     "set-role <id>",
		Short:   "Change an admin's role",
		Example: `  rolekeeper admin set-role 7 --role super_admin --actor 1`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runEdit(cmd.OutOrStdout(), actorID, id, func(current *model.Admin, req *service.EditRequest) {
				req.Role = &role
			})
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "New role: regular_admin or super_admin (required)")
	cmd.Flags().Int64Var(&actorID, "actor", 0, "ID of the Super Admin making the change (required)")
	cmd.MarkFlagRequired("role")
	cmd.MarkFlagRequired("actor")

	return cmd
}

// ---------- admin grant / revoke ----------

func newAdminPermissionCmd(verb string) *cobra.Command {
	var (
		permissions []string
		actorID     int64
	)

	short := "Grant permissions to an admin"
	if verb == "revoke" {
		short = "Revoke permissions from an admin"
	}

	cmd := &cobra.Command{
		Use:     verb + " <id>",
		Short:   short,
		Example: fmt.Sprintf("  rolekeeper admin %s 7 --permission donors.view --permission reports.export --actor 1", verb),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if invalid := catalog.Invalid(permissions); len(invalid) > 0 {
				return fmt.Errorf("unknown permissions: %s (see 'rolekeeper role options')", strings.Join(invalid, ", "))
			}
			return runEdit(cmd.OutOrStdout(), actorID, id, func(current *model.Admin, req *service.EditRequest) {
				next := updatePermissions(current.Permissions, permissions, verb == "grant")
				req.Permissions = &next
			})
		},
	}

	cmd.Flags().StringSliceVar(&permissions, "permission", nil, "Permission token (repeatable)")
	cmd.Flags().Int64Var(&actorID, "actor", 0, "ID of the Super Admin making the change (required)")
	cmd.MarkFlagRequired("permission")
	cmd.MarkFlagRequired("actor")

	return cmd
}

// updatePermissions adds or removes tokens from current.
func updatePermissions(current, tokens []string, grant bool) []string {
	set := make(map[string]bool, len(current)+len(tokens))
	for _, p := range current {
		set[p] = true
	}
	for _, p := range tokens {
		set[p] = grant
	}
	out := make([]string, 0, len(set))
	for _, p := range catalog.AllPermissions() {
		if set[p] {
			out = append(out, p)
		}
	}
	return out
}

// runEdit loads the target, lets build fill in the change against the
// version just read, and runs it through the Edit Service so the CLI gets
// the same guards and audit trail as the API.
func runEdit(out io.Writer, actorID, targetID int64, build func(current *model.Admin, req *service.EditRequest)) error {
	return withStore(func(ctx context.Context, cfg *config.YAMLConfig, store *config.Store) error {
		actor, err := loadActor(ctx, store, actorID)
		if err != nil {
			return err
		}
		current, err := store.GetAdmin(ctx, targetID)
		if err != nil {
			if errors.Is(err, config.ErrNotFound) {
				return fmt.Errorf("admin %d not found", targetID)
			}
			return err
		}

		logger := newLogger(cfg.Logging)
		edits, closeEdits, err := newEditService(ctx, store, cfg, logger)
		if err != nil {
			return err
		}
		defer closeEdits()

		version := current.Version
		req := service.EditRequest{
			ActorID:       actor.ID,
			TargetID:      targetID,
			ClientVersion: &version,
		}
		build(current, &req)

		updated, err := edits.UpdateAdmin(ctx, req)
		if err != nil {
			return describeEditError(err)
		}
		fmt.Fprintf(out, "Updated %q: %s, access level %d, version %d\n",
			updated.Email, updated.Role.Label(), updated.AccessLevel, updated.Version)
		return nil
	})
}

// describeEditError turns a coded Edit Service error into a CLI message.
func describeEditError(err error) error {
	switch errutil.Code(err) {
	case service.CodeForbidden, service.CodeValidation, service.CodeNotFound, service.CodeEmailConflict:
		return err
	case service.CodeVersionConflict:
		return errors.New("the admin was modified concurrently; run the command again")
	case service.CodeTooManyRequests:
		return errors.New("duplicate request; wait a few seconds and try again")
	default:
		return fmt.Errorf("edit failed: %w", err)
	}
}
