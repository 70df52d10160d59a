package seeders

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"

	"repair-tracker/internal/repositories"
)

// SeedLookups наполняет справочники в одной транзакции. Повторный запуск только добавляет
// отсутствующие строки.
func SeedLookups(ctx context.Context, txManager repositories.TxManagerInterface) error {
	log.Println("▶️  Запуск наполнения справочников...")

	err := txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := seedEmployees(ctx, tx); err != nil {
			return fmt.Errorf("сотрудники: %w", err)
		}
		if err := seedNamed(ctx, tx, "service_companies", serviceCompaniesData); err != nil {
			return fmt.Errorf("сервисные компании: %w", err)
		}
		if err := seedNamed(ctx, tx, "equipment_types", equipmentTypesData); err != nil {
			return fmt.Errorf("типы оборудования: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Println("✅ Наполнение справочников завершено!")
	return nil
}

// У ФИО нет уникального индекса: однофамильцы допустимы, поэтому проверка через NOT EXISTS.
func seedEmployees(ctx context.Context, tx pgx.Tx) error {
	log.Println("  - Наполнение таблицы 'employees'...")
	query := `INSERT INTO employees (fio)
			  SELECT $1::text WHERE NOT EXISTS (SELECT 1 FROM employees WHERE fio = $1::text)`
	for _, fio := range employeesData {
		if _, err := tx.Exec(ctx, query, fio); err != nil {
			return err
		}
	}
	return nil
}

func seedNamed(ctx context.Context, tx pgx.Tx, table string, names []string) error {
	log.Printf("  - Наполнение таблицы '%s'...", table)
	query := fmt.Sprintf(`INSERT INTO %s (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, table)
	for _, name := range names {
		if _, err := tx.Exec(ctx, query, name); err != nil {
			return err
		}
	}
	return nil
}
