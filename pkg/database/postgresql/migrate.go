package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"repair-tracker/migrations"
)

// Migrate накатывает встроенные миграции goose. goose работает через database/sql,
// поэтому здесь открывается отдельное соединение через pgx/stdlib.
func Migrate(ctx context.Context, dsn string, logger *zap.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("не удалось открыть соединение для миграций: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err == nil {
		logger.Info("Миграции применены", zap.Int64("version", version))
	}
	return nil
}
