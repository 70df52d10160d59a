package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"repair-tracker/internal/repositories"
	"repair-tracker/pkg/config"
	"repair-tracker/pkg/database/postgresql"
	"repair-tracker/seeders"
)

func main() {
	log.Println("======================================================")
	log.Println("       🌱 СИСТЕМА СИДЕРОВ (Наполнение БД)           ")
	log.Println("======================================================")

	runLookups := flag.Bool("lookups", false, "Наполнить справочники: сотрудники, сервисные компании, типы оборудования")
	runMigrate := flag.Bool("migrate", false, "Применить миграции перед наполнением")

	flag.Parse()

	if !*runLookups && !*runMigrate {
		log.Println("❌ Не выбран ни один сидер для запуска.")
		log.Println("")
		log.Println("Доступные флаги:")
		flag.PrintDefaults()
		log.Println("")
		log.Println("Примеры использования:")
		log.Println("  go run ./seeders/cmd/seed -lookups")
		log.Println("  go run ./seeders/cmd/seed -migrate -lookups")
		log.Println("======================================================")
		return
	}

	ctx := context.Background()
	cfg := config.New()
	log.Println("📦 Используется DSN:", cfg.Postgres.DSN)

	if *runMigrate {
		if err := postgresql.Migrate(ctx, cfg.Postgres.DSN, zap.NewNop()); err != nil {
			log.Fatalf("❌ Ошибка миграций: %v", err)
		}
	}

	dbPool, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		log.Fatalf("❌ Не удалось подключиться к БД: %v", err)
	}
	defer dbPool.Close()

	log.Println("======================================================")

	if *runLookups {
		if err := seeders.SeedLookups(ctx, repositories.NewTxManager(dbPool)); err != nil {
			log.Fatalf("❌ Ошибка наполнения справочников: %v", err)
		}
		log.Println("======================================================")
	}

	log.Println("✅ Все указанные операции сидирования успешно завершены.")
	log.Println("======================================================")
}
