package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	invoicingapp "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/clinicerp/backend/internal/bootstrap"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

// SequenceService is what the sequence commands need
type SequenceService interface {
	List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]invoicingapp.SequenceResponse, error)
	GetActiveStatus(ctx context.Context, tenantID uuid.UUID, documentType string) (*invoicingapp.SequenceResponse, error)
}

// ReportService is what the report commands need
type ReportService interface {
	Generate(ctx context.Context, tenantID uuid.UUID, periodKey, reportType string) (*invoicingapp.ReportResponse, error)
	TaxBalance(ctx context.Context, tenantID uuid.UUID, periodKey string) (*invoicingapp.TaxBalanceResponse, error)
}

// app carries the state shared by every subcommand
type app struct {
	configPath string
	tenant     string
	output     string

	sequences SequenceService
	reports   ReportService
	closeFn   func()
}

// newRootCmd builds the command tree. When a is pre-populated with services
// (tests), no database connection is opened.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "fiscalctl",
		Short: "Operate fiscal sequences and period reports",
		Long: `fiscalctl inspects the authorized fiscal number ranges of a clinic and
builds its monthly 606 (purchases) and 607 (sales) reports.

It reads the same config.toml and CLINIC_* environment as the server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.sequences != nil && a.reports != nil {
				return nil
			}
			return a.connect()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.closeFn != nil {
				a.closeFn()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config.toml (default: ./config.toml or /app/config.toml)")
	root.PersistentFlags().StringVarP(&a.tenant, "tenant", "t", "", "Tenant ID")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "table", "Output format: table or json")

	root.AddCommand(newSequenceCmd(a), newReportCmd(a))
	return root
}

// connect opens the database and builds the services from configuration
func (a *app) connect() error {
	cfg, err := bootstrap.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return err
	}
	settings, err := bootstrap.InvoicingSettings(cfg.Invoicing)
	if err != nil {
		return err
	}
	db, err := bootstrap.OpenDatabase(cfg, log)
	if err != nil {
		return err
	}

	services := bootstrap.NewServices(bootstrap.NewRepositories(db), bootstrap.Dependencies{}, settings, log)
	a.sequences = services.Sequences
	a.reports = services.Reports
	a.closeFn = func() {
		if err := db.Close(); err != nil {
			log.Warn("Error closing database", zap.Error(err))
		}
		_ = log.Sync()
	}
	return nil
}

func (a *app) tenantID() (uuid.UUID, error) {
	if a.tenant == "" {
		return uuid.Nil, fmt.Errorf("--tenant is required")
	}
	id, err := uuid.Parse(a.tenant)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid tenant ID %q: %w", a.tenant, err)
	}
	return id, nil
}

// render writes v as indented JSON or hands it to table
func (a *app) render(w io.Writer, v any, table func(io.Writer) error) error {
	switch strings.ToLower(a.output) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "table", "":
		return table(w)
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}
}
