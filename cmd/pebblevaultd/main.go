// Command pebblevaultd is a thin wiring demonstration for PebbleVault: it
// loads a declarative config, opens a Vault against the selected backend,
// and serves a read-only Prometheus /metrics endpoint. It contains no
// business logic of its own; every real operation lives in pkg/vault.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/pebblevault/pkg/config"
	"github.com/cuemby/pebblevault/pkg/log"
	"github.com/cuemby/pebblevault/pkg/metrics"
	"github.com/cuemby/pebblevault/pkg/storage"
	"github.com/cuemby/pebblevault/pkg/vault"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "pebblevaultd",
	Short:   "PebbleVault demonstration server",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open a Vault against the configured backend and serve /metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		listenAddr, _ := cmd.Flags().GetString("listen")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		backend, err := openBackend(cfg)
		if err != nil {
			metrics.RegisterComponent("backend", false, err.Error())
			return err
		}
		metrics.RegisterComponent("backend", true, "")

		logger := log.WithComponent("pebblevaultd")

		v, err := vault.Open(backend, vault.WithProgressHook(func(stage string, done, total int) {
			logger.Info().Str("stage", stage).Int("done", done).Int("total", total).Msg("progress")
		}))
		if err != nil {
			metrics.RegisterComponent("vault", false, err.Error())
			return fmt.Errorf("open vault: %w", err)
		}
		defer v.Close()
		metrics.RegisterComponent("vault", true, "")

		metrics.BackendUp.Set(1)
		metrics.SetVersion(Version)
		backendLogger := log.WithBackend(cfg.Database.Backend)
		backendLogger.Info().Str("addr", listenAddr).Msg("serving metrics")

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/healthz", metrics.HealthHandler())
		mux.Handle("/readyz", metrics.ReadyHandler())
		mux.Handle("/livez", metrics.LivenessHandler())
		return http.ListenAndServe(listenAddr, mux)
	},
}

func init() {
	serveCmd.Flags().String("config", "vault.yaml", "Path to the declarative config document")
	serveCmd.Flags().String("listen", ":9090", "Address to serve /metrics, /healthz, /readyz, /livez on")
}

func openBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Database.Backend {
	case config.BackendEmbedded:
		return storage.NewBoltBackend(cfg.Database.Embedded.Path)
	case config.BackendSQLite:
		return storage.NewSQLiteBackend(cfg.Database.SQLite.Path)
	case config.BackendPostgres:
		c := cfg.Database.Postgres
		return storage.NewPostgresBackend(storage.PostgresConfig{
			Host: c.Host, Port: c.Port, User: c.User, Password: c.Password, DBName: c.DBName, SSLMode: c.SSLMode,
		})
	case config.BackendMySQL:
		c := cfg.Database.MySQL
		return storage.NewMySQLBackend(storage.MySQLConfig{
			Host: c.Host, Port: c.Port, User: c.User, Password: c.Password, DBName: c.DBName,
		})
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Database.Backend)
	}
}
