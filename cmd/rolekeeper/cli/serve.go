package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faucetdb/rolekeeper/internal/config"
	"github.com/faucetdb/rolekeeper/internal/handler"
	"github.com/faucetdb/rolekeeper/internal/server"
	"github.com/faucetdb/rolekeeper/internal/service"
)

const banner = `
 ___  ___  _    ___ _  _____ ___ ___ ___ ___
| _ \/ _ \| |  | __| |/ / __| __| _ \ __| _ \
|   / (_) | |__| _|| ' <| _|| _||  _/ _||   /
|_|_\\___/|____|___|_|\_\___|___|_| |___|_|_\
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Rolekeeper API server",
		Long:  "Start the HTTP server that exposes the admin role management API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = viper.GetInt("server.port")
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = viper.GetString("server.host")
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

// serverConfig maps the file configuration onto the HTTP server config.
func serverConfig(cfg *config.YAMLConfig) server.Config {
	def := server.DefaultConfig()
	return server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: config.ParseDuration(cfg.Server.ShutdownTimeout, def.ShutdownTimeout),
		CORSOrigins:     cfg.Server.CORS.Origins,
		MaxBodySize:     config.ParseSize(cfg.Server.MaxBodySize, def.MaxBodySize),
		LoginRatePerMin: cfg.Auth.LoginRatePerMin,
		SessionTTL:      config.ParseDuration(cfg.Auth.JWTExpiry, handler.DefaultSessionTTL),
		Version:         versionString(),
	}
}

func runServe(ctx context.Context, cfg *config.YAMLConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Print(banner)
	fmt.Println()

	logger := newLogger(cfg.Logging)

	// 1. Admin store
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("admin store initialized", "driver", store.Dialect(), "data_dir", cfg.Storage.DataDir)

	// 2. Edit Service with duplicate suppression and audit sinks
	edits, closeEdits, err := newEditService(ctx, store, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEdits()

	// 3. Session tokens
	secret, err := resolveJWTSecret(ctx, store, cfg.Auth)
	if err != nil {
		return err
	}
	authSvc := service.NewAuthService(store, secret)

	// 4. First run: nobody can log in until an admin exists
	hasAdmin, err := store.HasAnyAdmin(ctx)
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: rolekeeper admin create --role super_admin")
	}

	// 5. HTTP server
	srvCfg := serverConfig(cfg)
	srv := server.New(srvCfg, store, authSvc, edits, logger)

	fmt.Printf("→ Rolekeeper %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ API:        http://%s:%d/api/v1\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", srvCfg.Host, srvCfg.Port)
	fmt.Println()

	return srv.ListenAndServe()
}
