package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pdfqa/internal/config"
	"pdfqa/internal/db"
	"pdfqa/internal/logging"
	"pdfqa/internal/repository"
	"pdfqa/internal/storage"
)

var (
	fix    bool
	minAge time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Find uploads and history left behind by interrupted deletes",
	Long: `reconcile compares the upload directory and the query history table
against the live PDF registry. Without --fix it only reports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		cfg := config.Load()
		logger := logging.New(cfg.Env, cfg.LogLevel)

		dsn := cfg.MySQLDSN
		if cfg.DBDriver == "sqlite" {
			dsn = cfg.SQLitePath
		}
		gormDB, err := db.Open(cfg.DBDriver, dsn)
		if err != nil {
			return err
		}
		if err := db.Migrate(gormDB); err != nil {
			return err
		}
		files, err := storage.NewLocal(cfg.UploadDir)
		if err != nil {
			return err
		}

		r := &reconciler{
			pdfs:    repository.NewPDFRepository(gormDB),
			history: repository.NewQueryHistoryRepository(gormDB),
			files:   files,
			logger:  logger,
			minAge:  minAge,
			now:     time.Now,
		}
		rep, err := r.run(cmd.Context(), fix)
		if err != nil {
			return err
		}
		rep.print(cmd.OutOrStdout(), fix)
		return nil
	},
}

func main() {
	rootCmd.Flags().BoolVar(&fix, "fix", false, "remove what was found instead of only reporting it")
	rootCmd.Flags().DurationVar(&minAge, "min-age", time.Hour, "ignore upload files younger than this, they may belong to an upload in progress")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
