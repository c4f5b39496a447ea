package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nimasrn/expense-gateway/internal/config"
	"github.com/nimasrn/expense-gateway/internal/gateways"
	"github.com/nimasrn/expense-gateway/internal/model"
	"github.com/nimasrn/expense-gateway/internal/repository"
	"github.com/nimasrn/expense-gateway/internal/services"
	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/nimasrn/expense-gateway/pkg/pg"
	"github.com/spf13/cobra"
)

var envPath string

func main() {
	root := &cobra.Command{
		Use:           "expensectl",
		Short:         "Operational commands for the expense gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Load(envPath)
		},
	}
	root.PersistentFlags().StringVar(&envPath, "env", "", "path of a .env file to load")
	root.AddCommand(migrateCmd(), sweepCmd(), pinSyncCmd(), userCmd())

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func writeConfig() pg.Config {
	cfg := config.Get()
	return pg.Config{
		User:     cfg.PostgresWriteUser,
		Host:     cfg.PostgresWriteHost,
		Port:     cfg.PostgresWritePort,
		Password: cfg.PostgresWritePassword,
		Database: cfg.PostgresWriteDatabase,
	}
}

func openDB() (*pg.DB, error) {
	conf := writeConfig()
	db, err := pg.CreateReadWrite(conf, conf, false)
	if err != nil {
		return nil, fmt.Errorf("connect pg: %w", err)
	}
	return db, nil
}

func backends() (*gateway.DirectoryGateway, *gateway.ERPGateway) {
	cfg := config.Get()
	directory := gateway.NewDirectoryGateway(gateway.DirectoryConfig{
		URL:         cfg.DirectoryURL,
		Username:    cfg.DirectoryUser,
		Password:    cfg.DirectoryPassword,
		Timeout:     cfg.DirectoryTimeout,
		MaxAttempts: cfg.DirectoryMaxAttempts,
		Backoff:     cfg.DirectoryBackoff,
	}, gateway.NewHTTPClient("directory", cfg.DirectoryTimeout), nil)
	erp := gateway.NewERPGateway(gateway.ERPConfig{
		URL:        cfg.ErpURL,
		Timeout:    cfg.ErpTimeout,
		PinTimeout: cfg.ErpPinTimeout,
	}, gateway.NewHTTPClient("erp", cfg.ErpTimeout))
	return directory, erp
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("migrations dir: %w", err)
			}
			return pg.Migrate(writeConfig(), dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "./migrations", "directory holding the goose migrations")
	return cmd
}

// sweepCmd runs one coordinate sweep in process, the same work the
// /api/sync/coordinates endpoint triggers.
func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Push pending coordinates to the ERP once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			directory, erp := backends()
			svc := services.NewSweepService(repository.NewExpenseRepository(db), directory, erp, cfg.SweepMaxAge, cfg.SweepBatchLimit)
			summary, err := svc.Run(context.Background())
			if err != nil {
				return err
			}

			return printJSON(cmd, summary)
		},
	}
}

func pinSyncCmd() *cobra.Command {
	var req model.PinSyncRequest
	cmd := &cobra.Command{
		Use:   "pin-sync",
		Short: "Register the default PIN for enrolled users that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			directory, erp := backends()
			svc := services.NewPinSyncService(repository.NewUserRepository(db), directory, erp)
			report, err := svc.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().StringVar(&req.Pin, "pin", services.DefaultPin, "PIN to register")
	cmd.Flags().BoolVar(&req.DryRun, "dry-run", false, "report what would be registered without calling the ERP")
	cmd.Flags().StringArrayVar(&req.Names, "name", nil, "only sync this user; repeatable")
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users enrolled for expense reporting",
	}

	var u model.RegisteredUser
	register := &cobra.Command{
		Use:   "register",
		Short: "Enroll a bot user, or update an enrolled one",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			saved, err := repository.NewUserRepository(db).Register(cmd.Context(), &u)
			if err != nil {
				return err
			}
			return printJSON(cmd, saved)
		},
	}
	register.Flags().Int64Var(&u.RequesterID, "requester-id", 0, "bot user id")
	register.Flags().StringVar(&u.Name, "name", "", "employee name as the directory spells it")
	register.Flags().StringVar(&u.TaxID, "tax-id", "", "employee tax id")
	_ = register.MarkFlagRequired("requester-id")
	_ = register.MarkFlagRequired("name")

	cmd.AddCommand(register)
	return cmd
}
