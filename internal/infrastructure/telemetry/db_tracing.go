package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include query variables in spans; development only
	SlowQueryThresh time.Duration
	DBName          string
}

type queryStartKey struct{}

// RegisterDBTracing installs the otelgorm plugin plus callbacks that flag slow
// queries on the active span.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { annotateSpan(tx, cfg.SlowQueryThresh) }

	cb := db.Callback()
	for name, err := range map[string]error{
		"create": cb.Create().Before("gorm:create").Register("slow_query:before_create", before),
		"query":  cb.Query().Before("gorm:query").Register("slow_query:before_query", before),
		"update": cb.Update().Before("gorm:update").Register("slow_query:before_update", before),
		"delete": cb.Delete().Before("gorm:delete").Register("slow_query:before_delete", before),
		"row":    cb.Row().Before("gorm:row").Register("slow_query:before_row", before),
		"raw":    cb.Raw().Before("gorm:raw").Register("slow_query:before_raw", before),
	} {
		if err != nil {
			return fmt.Errorf("register before_%s: %w", name, err)
		}
	}
	for name, err := range map[string]error{
		"create": cb.Create().After("gorm:create").Register("slow_query:after_create", after),
		"query":  cb.Query().After("gorm:query").Register("slow_query:after_query", after),
		"update": cb.Update().After("gorm:update").Register("slow_query:after_update", after),
		"delete": cb.Delete().After("gorm:delete").Register("slow_query:after_delete", after),
		"row":    cb.Row().After("gorm:row").Register("slow_query:after_row", after),
		"raw":    cb.Raw().After("gorm:raw").Register("slow_query:after_raw", after),
	} {
		if err != nil {
			return fmt.Errorf("register after_%s: %w", name, err)
		}
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func annotateSpan(tx *gorm.DB, threshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.RecordError(tx.Error)
	}
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		if elapsed := time.Since(start); elapsed > threshold {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}
