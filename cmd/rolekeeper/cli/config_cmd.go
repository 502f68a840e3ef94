package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage Rolekeeper configuration",
		Long:  "Initialize a default configuration file or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

// ---------- config init ----------

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default rolekeeper.yaml configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd.OutOrStdout(), path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")
	cmd.Flags().StringVarP(&path, "output", "o", "rolekeeper.yaml", "Path of the file to write")

	return cmd
}

const defaultConfig = `# Rolekeeper Configuration
# Any ${VAR} reference is expanded from the environment. Every key can also be
# overridden with ROLEKEEPER_<SECTION>_<KEY>, e.g. ROLEKEEPER_AUTH_JWT_SECRET.

server:
  host: 0.0.0.0
  port: 8080
  max_body_size: 1MB
  shutdown_timeout: 30s
  cors:
    origins:
      - "*"
    methods: [GET, POST, PUT, DELETE]

auth:
  jwt_secret: ""        # generated and stored on first start when empty
  jwt_expiry: 8h
  login_rate_per_min: 10

# Admin store: sqlite (in data_dir) or postgres (dsn)
storage:
  driver: sqlite
  dsn: ""
  data_dir: ""          # default ~/.rolekeeper

# Duplicate-request suppression
dedup:
  backend: memory       # memory or redis
  window: 3s
  sweep_interval: 5s
  redis_addr: ""
  redis_password: ""
  redis_db: 0
  redis_prefix: rolekeeper:dedup

# Audit entries always go to the store; set file to also write JSON lines
audit:
  file: ""
  max_size_mb: 100
  max_backups: 5
  max_age_days: 90
  compress: true

mcp:
  transport: stdio
  actor_id: 0           # Super Admin the MCP session acts as

logging:
  level: info           # debug, info, warn, error
  format: text          # text or json
`

func runConfigInit(out io.Writer, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := os.WriteFile(path, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", path)
	fmt.Fprintln(out, "Create the first account with 'rolekeeper admin create --role super_admin', then run 'rolekeeper serve'.")
	return nil
}

// ---------- config show ----------

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}
}

func runConfigShow(out io.Writer) error {
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Fprintf(out, "# Config file: %s\n", configFile)
	} else {
		fmt.Fprintln(out, "# Config file: (none found, using defaults)")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret != "" {
		cfg.Auth.JWTSecret = "********"
	}
	if cfg.Dedup.RedisPassword != "" {
		cfg.Dedup.RedisPassword = "********"
	}
	if cfg.Storage.DSN != "" {
		cfg.Storage.DSN = "********"
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}
