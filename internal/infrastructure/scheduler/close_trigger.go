package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantProvider lists the tenants to close
type TenantProvider interface {
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// MonthCloser generates the period drafts of one tenant
type MonthCloser interface {
	CloseMonth(ctx context.Context, tenantID uuid.UUID, period invoicing.Period) error
}

// CloseExecutor runs close jobs through a MonthCloser
func CloseExecutor(closer MonthCloser) JobExecutor {
	return JobExecutorFunc(func(ctx context.Context, job *Job) error {
		return closer.CloseMonth(ctx, job.TenantID, job.Period)
	})
}

// TriggerConfig holds the monthly trigger settings
type TriggerConfig struct {
	// CloseDay is the day of month from which the previous month is closed (1..28)
	CloseDay      int
	CheckInterval time.Duration
	Location      *time.Location
}

// MonthlyCloseTrigger submits one close job per tenant for the previous
// month, once per month, on or after CloseDay.
type MonthlyCloseTrigger struct {
	config    TriggerConfig
	scheduler *Scheduler
	tenants   TenantProvider
	logger    *zap.Logger
	now       func() time.Time

	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	isRunning  bool
	lastClosed invoicing.Period
}

// NewMonthlyCloseTrigger creates a new trigger
func NewMonthlyCloseTrigger(config TriggerConfig, scheduler *Scheduler, tenants TenantProvider, logger *zap.Logger) *MonthlyCloseTrigger {
	if config.CloseDay < 1 {
		config.CloseDay = 1
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Hour
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &MonthlyCloseTrigger{
		config:    config,
		scheduler: scheduler,
		tenants:   tenants,
		logger:    logger.Named("close_trigger"),
		now:       time.Now,
	}
}

// WithClock replaces the time source
func (c *MonthlyCloseTrigger) WithClock(now func() time.Time) *MonthlyCloseTrigger {
	c.now = now
	return c
}

// Start begins checking every CheckInterval. The first check runs immediately.
func (c *MonthlyCloseTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Monthly close trigger started",
		zap.Int("close_day", c.config.CloseDay),
		zap.Duration("check_interval", c.config.CheckInterval),
		zap.String("timezone", c.config.Location.String()),
	)
	return nil
}

// Stop halts the trigger
func (c *MonthlyCloseTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.cancel()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *MonthlyCloseTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	c.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check submits the close of the previous month when it is due and not yet done.
// It returns the number of submitted jobs.
func (c *MonthlyCloseTrigger) Check(ctx context.Context) int {
	now := c.now().In(c.config.Location)
	if now.Day() < c.config.CloseDay {
		return 0
	}
	period := invoicing.PeriodOf(now, c.config.Location).Previous()

	c.mu.Lock()
	if c.lastClosed == period {
		c.mu.Unlock()
		return 0
	}
	c.mu.Unlock()

	submitted, err := c.Trigger(ctx, period)
	if err != nil {
		// retried on the next check
		c.logger.Error("Failed to trigger monthly close", zap.String("period", period.String()), zap.Error(err))
		return submitted
	}

	c.mu.Lock()
	c.lastClosed = period
	c.mu.Unlock()
	return submitted
}

// Trigger submits one close job per tenant for period
func (c *MonthlyCloseTrigger) Trigger(ctx context.Context, period invoicing.Period) (int, error) {
	tenantIDs, err := c.tenants.ListTenantIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tenants: %w", err)
	}

	c.logger.Info("Closing fiscal month",
		zap.String("period", period.String()),
		zap.Int("tenant_count", len(tenantIDs)),
	)
	submitted := 0
	for _, tenantID := range tenantIDs {
		if err := c.scheduler.SubmitJob(NewJob(tenantID, period, c.scheduler.config.RetryAttempts)); err != nil {
			return submitted, fmt.Errorf("submit close for tenant %s: %w", tenantID, err)
		}
		submitted++
	}
	return submitted, nil
}
