package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/catalog-importer/internal/delivery/rest"
	"github.com/yourusername/catalog-importer/internal/delivery/telegram"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/infrastructure/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogd",
		Short:         "Supplier catalog XML importer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newImportCmd(), newStorageCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	log := logger.Component("main")
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddress,
		Handler:           rest.NewRouter(a.imports, a.metrics.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("HTTP server ishga tushdi")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if a.cfg.TelegramToken != "" {
		bot, err := telegram.NewBotHandler(a.cfg.TelegramToken, a.cfg.AdminChatIDs, a.imports)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := bot.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN berilmagan, bot ishga tushmaydi")
	}

	err := g.Wait()

	log.Info("Ishlayotgan importlar kutilmoqda...")
	a.imports.Wait()
	return err
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.xml>",
		Short: "Import one feed synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			job, err := a.imports.ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := printJSON(cmd, job); err != nil {
				return err
			}
			if job.Status != entity.JobCompleted {
				return fmt.Errorf("import %s: %s", job.Status, job.Error)
			}
			return nil
		},
	}
}

func newStorageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect and maintain the catalog database",
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Run the storage guard once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.guard.CheckAndManageStorage(cmd.Context(), a.cfg.Import().Guard)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	var tables []string
	backup := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot catalog tables to the backup directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if len(tables) == 0 {
				tables = a.cfg.BackupTables
			}
			path, remote, err := a.guard.Backup(cmd.Context(), tables)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"path": path, "remote": remote})
		},
	}
	backup.Flags().StringSliceVar(&tables, "tables", nil, "tables to snapshot (default BACKUP_TABLES)")

	restore := &cobra.Command{
		Use:   "restore <backup.json>",
		Short: "Re-insert rows from a snapshot without overwriting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.guard.Restore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	var co entity.CleanupOptions
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old rows and vacuum",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.guard.Cleanup(cmd.Context(), co)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cleanup.Flags().BoolVar(&co.DeleteImages, "images", false, "delete all product images")
	cleanup.Flags().IntVar(&co.RetentionDays, "retention-days", 30, "delete prices and stocks older than this")
	cleanup.Flags().IntVar(&co.KeepRecentProducts, "keep", 0, "keep only the newest N products (0 keeps all)")
	cleanup.Flags().IntVar(&co.TruncateDescriptionsTo, "truncate", 0, "truncate descriptions to N characters")

	cmd.AddCommand(check, backup, restore, cleanup)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
