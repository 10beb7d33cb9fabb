package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscope/api/schemas"
	"github.com/xkilldash9x/taintscope/internal/config"
	"github.com/xkilldash9x/taintscope/internal/engine"
	"github.com/xkilldash9x/taintscope/internal/observability"
	"github.com/xkilldash9x/taintscope/internal/reporting"
	"github.com/xkilldash9x/taintscope/internal/rules"
	"github.com/xkilldash9x/taintscope/internal/store"
	"github.com/xkilldash9x/taintscope/internal/target"
)

// newScanCmd creates and configures the `scan` command.
func newScanCmd() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan [targets...]",
		Short: "Scans files, directories or git repositories for taint flows",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line flags override
			// values from the config file and environment.
			if err := viper.BindPFlag("engine.workers", cmd.Flags().Lookup("workers")); err != nil {
				return err
			}
			if err := viper.BindPFlag("rules.path", cmd.Flags().Lookup("rules")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			cfg.Scan.Targets = args
			cfg.Scan.ScanID = uuid.NewString()
			cfg.Scan.OutputPath = viper.GetString("output")
			cfg.Scan.Format = viper.GetString("format")
			if err := cfg.Validate(); err != nil {
				return err
			}

			ruleSet, err := loadRuleSet(cfg.Rules.Path)
			if err != nil {
				return err
			}

			logger.Info("Starting new scan",
				zap.String("scanID", cfg.Scan.ScanID),
				zap.Strings("targets", cfg.Scan.Targets),
				zap.Int("workers", cfg.Engine.Workers),
				zap.Int("rules", len(ruleSet.Rules)))

			loader := target.NewLoader(cfg.Target, logger)
			defer loader.Cleanup()

			files, err := loader.Resolve(ctx, cfg.Scan.Targets)
			if err != nil {
				return fmt.Errorf("failed to resolve scan targets: %w", err)
			}
			if len(files) == 0 {
				return fmt.Errorf("no scannable files found in targets")
			}

			eng := engine.New(cfg.Engine, ruleSet, logger, Version)
			report, err := eng.Scan(ctx, cfg.Scan.ScanID, files)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Scan aborted", zap.String("scanID", cfg.Scan.ScanID))
					return fmt.Errorf("scan aborted by user signal")
				}
				return fmt.Errorf("scan failed: %w", err)
			}

			if cfg.Database.Enabled {
				if err := persistFindings(ctx, cfg, report, logger); err != nil {
					return err
				}
			}

			reporter, err := reporting.New(cfg.Scan.Format, cfg.Scan.OutputPath, logger)
			if err != nil {
				return err
			}
			if err := reporter.Write(report); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}

			logger.Info("Scan complete",
				zap.String("scanID", cfg.Scan.ScanID),
				zap.Int("findings", len(report.Findings)),
				zap.Int("units_scanned", report.Summary.UnitsScanned),
				zap.Int("units_failed", report.Summary.UnitsFailed))
			return nil
		},
	}

	scanCmd.Flags().StringP("output", "o", "", "Output file path for the report. Defaults to stdout.")
	scanCmd.Flags().StringP("format", "f", "text", "Report format: text, json, sarif or junit.")
	scanCmd.Flags().String("rules", "", "Extra rule catalogue merged over the built-in one.")
	scanCmd.Flags().IntP("workers", "j", 0, "Number of concurrent scan workers. (Overrides config/env)")

	return scanCmd
}

// loadRuleSet returns the built-in catalogue, with the user catalogue merged
// over it when a path is configured.
func loadRuleSet(path string) (*rules.RuleSet, error) {
	rs := rules.Default()
	if path == "" {
		return rs, nil
	}
	extra, err := rules.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule catalogue: %w", err)
	}
	return rs.Merge(extra), nil
}

// persistFindings writes the scan results to PostgreSQL.
func persistFindings(ctx context.Context, cfg *config.Config, report schemas.Report, logger *zap.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	db, err := store.New(ctx, pool, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database store: %w", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	return db.SaveFindings(ctx, report.ScanID, report.Findings)
}

func init() {
	rootCmd.AddCommand(newScanCmd())
}
