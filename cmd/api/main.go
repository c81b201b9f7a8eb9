package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"Idea_Portal/internal/config"
	"Idea_Portal/internal/model"
	"Idea_Portal/internal/repository/rdb"
	"Idea_Portal/internal/service"
)

var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

const appName = "idea-portal"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          appName,
		Short:        "Idea portal API server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfgPath)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfgPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap(cfgPath)
			if err != nil {
				return err
			}
			db, err := rdb.Open(cfg.Database, log)
			if err != nil {
				return err
			}
			if err := rdb.Migrate(db); err != nil {
				return err
			}
			log.Info("migration finished", "driver", cfg.Database.Driver)
			return nil
		},
	})
	root.AddCommand(adminCmd(&cfgPath))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", appName, Version, BuildTime)
		},
	})
	return root
}

// adminCmd 管理员账号维护，替代手工改库
func adminCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}
	setRole := func(role model.Role) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(*cfgPath)
			if err != nil {
				return err
			}
			db, err := rdb.Open(cfg.Database, log)
			if err != nil {
				return err
			}
			users := service.NewUserService(rdb.NewUserRepository(db), nil, nil, nil, nil, nil, log)
			user, err := users.SetRoleByEmail(c.Context(), args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "%s is now %s\n", user.Email, user.Role)
			return nil
		}
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the admin role to a registered user",
		Args:  cobra.ExactArgs(1),
		RunE:  setRole(model.RoleAdmin),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "demote <email>",
		Short: "Revoke the admin role from a user",
		Args:  cobra.ExactArgs(1),
		RunE:  setRole(model.RoleClient),
	})
	return cmd
}

// bootstrap 读取配置并初始化全局日志
func bootstrap(cfgPath string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, nil, err
	}
	log := newLogger(cfg.Log)
	slog.SetDefault(log)
	return cfg, log, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts)).With("service", appName)
}
