// Package bootstrap builds the pieces shared by the server and the operator
// CLI: configuration, logger, database and the invoicing services.
package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"

	invoicingapp "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/clinicerp/backend/internal/infrastructure/config"
	"github.com/clinicerp/backend/internal/infrastructure/logger"
	"github.com/clinicerp/backend/internal/infrastructure/persistence"
	"github.com/clinicerp/backend/internal/infrastructure/telemetry"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LoadConfig reads .env files into the environment, then the TOML config.
// A missing .env is not an error.
func LoadConfig(path string, envFiles ...string) (*config.Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// NewLogger builds the service logger from the [log] section
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
		Env:     cfg.App.Env,
	})
}

// InvoicingSettings converts the [invoicing] section
func InvoicingSettings(cfg config.InvoicingConfig) (invoicingapp.Settings, error) {
	settings := invoicingapp.DefaultSettings()

	if cfg.DefaultCurrency != "" {
		currency, err := valueobject.ParseCurrency(cfg.DefaultCurrency)
		if err != nil {
			return settings, fmt.Errorf("invoicing.default_currency: %w", err)
		}
		settings.DefaultCurrency = currency
	}
	if cfg.DefaultTaxRate != "" {
		rate, err := cfg.TaxRate()
		if err != nil {
			return settings, err
		}
		settings.DefaultTaxRate = rate
	}
	if cfg.Timezone != "" {
		loc, err := cfg.Location()
		if err != nil {
			return settings, err
		}
		settings.Location = loc
	}
	if cfg.DefaultDueDays > 0 {
		settings.DefaultDueDays = cfg.DefaultDueDays
	}
	if cfg.AllocationMaxRetries > 0 {
		settings.AllocationMaxRetries = cfg.AllocationMaxRetries
	}
	if cfg.PaymentMaxRetries > 0 {
		settings.PaymentMaxRetries = cfg.PaymentMaxRetries
	}
	if cfg.IdempotencyTTL > 0 {
		settings.IdempotencyTTL = cfg.IdempotencyTTL
	}
	return settings, nil
}

// OpenDatabase connects with the zap-backed query logger and installs the
// otelgorm plugin when database tracing is on
func OpenDatabase(cfg *config.Config, log *zap.Logger) (*persistence.Database, error) {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithExpectedErrors(gorm.ErrRecordNotFound, gorm.ErrDuplicatedKey))

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return nil, err
	}
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		DBName:     cfg.Database.DBName,
	}, log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}
	return db, nil
}

// Repositories are the gorm repositories of one database
type Repositories struct {
	Invoices      *persistence.GormInvoiceRepository
	Payments      *persistence.GormPaymentRepository
	Sequences     *persistence.GormFiscalSequenceRepository
	Quotations    *persistence.GormQuotationRepository
	SupplierBills *persistence.GormSupplierBillRepository
	Reports       *persistence.GormPeriodReportRepository
	TxScope       *persistence.GormTransactionScope
}

// NewRepositories builds every invoicing repository over db
func NewRepositories(db *persistence.Database) Repositories {
	return Repositories{
		Invoices:      persistence.NewGormInvoiceRepository(db.DB),
		Payments:      persistence.NewGormPaymentRepository(db.DB),
		Sequences:     persistence.NewGormFiscalSequenceRepository(db.DB),
		Quotations:    persistence.NewGormQuotationRepository(db.DB),
		SupplierBills: persistence.NewGormSupplierBillRepository(db.DB),
		Reports:       persistence.NewGormPeriodReportRepository(db.DB),
		TxScope:       persistence.NewGormTransactionScope(db.DB),
	}
}

// Dependencies are the optional collaborators of the invoicing services
type Dependencies struct {
	Publisher   shared.EventPublisher
	Idempotency shared.IdempotencyStore
	Archive     invoicingapp.ReportArchive
	Metrics     *telemetry.InvoicingMetrics
}

// Services are the invoicing application services
type Services struct {
	Allocator     *invoicingapp.SequenceAllocator
	Invoices      *invoicingapp.InvoiceService
	Payments      *invoicingapp.PaymentLedger
	Quotations    *invoicingapp.QuotationService
	Sequences     *invoicingapp.SequenceService
	SupplierBills *invoicingapp.SupplierBillService
	Reports       *invoicingapp.ReportService
}

// NewServices wires the application services over repos
func NewServices(repos Repositories, deps Dependencies, settings invoicingapp.Settings, log *zap.Logger) Services {
	allocator := invoicingapp.NewSequenceAllocator(repos.TxScope, settings, deps.Metrics, log)
	return Services{
		Allocator: allocator,
		Invoices: invoicingapp.NewInvoiceService(repos.Invoices, repos.TxScope, allocator,
			deps.Publisher, deps.Metrics, settings, log),
		Payments: invoicingapp.NewPaymentLedger(repos.Payments, repos.Invoices, repos.TxScope,
			deps.Idempotency, deps.Publisher, deps.Metrics, settings, log),
		Quotations:    invoicingapp.NewQuotationService(repos.Quotations, repos.TxScope, deps.Publisher, settings, log),
		Sequences:     invoicingapp.NewSequenceService(repos.Sequences, repos.TxScope, log),
		SupplierBills: invoicingapp.NewSupplierBillService(repos.SupplierBills, settings, log),
		Reports: invoicingapp.NewReportService(repos.Reports, repos.TxScope, deps.Archive,
			deps.Publisher, deps.Metrics, settings, log),
	}
}
