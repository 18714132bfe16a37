package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"libraryhub.com/internal/api"
	"libraryhub.com/internal/config"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/engine"
	"libraryhub.com/internal/infra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "libraryhub",
		Short:         "Library management REST backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml or ./config/config.yaml)")

	root.AddCommand(serveCmd(), migrateCmd(), createAdminCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// bootstrap 加载配置、连接数据库并执行迁移
func bootstrap() (*config.Config, *infra.Database, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	db, err := infra.NewDatabase(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := infra.Migrate(db.DB); err != nil {
		db.Close()
		return nil, nil, err
	}
	return cfg, db, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer db.Close()

			log.Println("Database schema is up to date")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var seedEmail, seedPassword string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1. 加载配置并初始化数据库
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}

			// 2. Redis（可选）
			rdb, err := infra.ConnectRedis(cmd.Context(), cfg.Redis)
			if err != nil {
				db.Close()
				return err
			}

			// 3. 初始化引擎
			eng, err := engine.NewEngine(cfg, db, rdb)
			if err != nil {
				db.Close()
				return err
			}
			defer eng.Stop()

			// 4. 空库时创建默认管理员
			if seedEmail != "" && seedPassword != "" {
				if _, err := eng.GetAuthService().EnsureAdminUser(cmd.Context(), domain.RegisterInput{
					Email:     seedEmail,
					Password:  seedPassword,
					FirstName: "Library",
					LastName:  "Admin",
				}); err != nil {
					return fmt.Errorf("failed to seed admin: %w", err)
				}
			}

			// 5. 设置 Fiber 服务器
			app := api.NewServer(eng)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("Server starting on port %s", cfg.Server.Port)
				errCh <- app.Listen(cfg.Server.Port)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				log.Println("Server shutting down...")
				return app.ShutdownWithTimeout(10 * time.Second)
			}
		},
	}

	cmd.Flags().StringVar(&seedEmail, "seed-admin-email", os.Getenv("LIBRARY_SEED_ADMIN_EMAIL"), "admin created when the users table is empty")
	cmd.Flags().StringVar(&seedPassword, "seed-admin-password", os.Getenv("LIBRARY_SEED_ADMIN_PASSWORD"), "password for the seeded admin")
	return cmd
}
