// Package main provides a CLI tool for preparing a development database:
// it applies the schema, seeds demo catalog and price data and prints an
// admin access token.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	appctx "workshop/internal/core/context"
	"workshop/internal/core/id"
	"workshop/internal/domain/auth"
	"workshop/internal/infrastructure/storage/postgres"
	"workshop/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	if path := os.Getenv("SEED_SCHEMA"); path != "" {
		if err := applySchema(ctx, pool, path); err != nil {
			log.Fatalw("failed to apply schema", "path", path, "error", err)
		}
		log.Infow("schema applied", "path", path)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoData(ctx, pool, log); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		if err := printAdminToken(secret); err != nil {
			log.Fatalw("failed to sign admin token", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

// applySchema runs a SQL file. Without arguments pgx sends it over the
// simple protocol, so the file may hold several statements.
func applySchema(ctx context.Context, pool *postgres.Pool, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := pool.Exec(ctx, string(raw)); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}
	return nil
}

func seedDemoData(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	log.Info("seeding demo data...")

	return pgx.BeginFunc(ctx, pool.Unwrap(), func(tx pgx.Tx) error {
		// 1. Tax templates
		taxRows := []struct {
			template, chargeType, account, description string
			rate                                       string
		}{
			{"PPN 11%", "On Net Total", "VAT Output", "PPN 11%", "11"},
			{"PPN 11% + Service", "On Net Total", "VAT Output", "PPN 11%", "11"},
			{"PPN 11% + Service", "On Net Total", "Service Charge", "Service 5%", "5"},
		}
		idx := map[string]int{}
		for _, r := range taxRows {
			idx[r.template]++
			if _, err := tx.Exec(ctx, `
				INSERT INTO cat_sales_tax_template_rows (template, idx, charge_type, account_head, description, rate)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (template, idx) DO NOTHING
			`, r.template, idx[r.template], r.chargeType, r.account, r.description, decimal.RequireFromString(r.rate)); err != nil {
				return fmt.Errorf("seed tax template %s: %w", r.template, err)
			}
		}

		// 2. Job types
		jobs := []struct {
			code, name, item string
			opl              bool
			rate             string
		}{
			{"JT-SRV-10K", "Servis Berkala 10.000 km", "SVC-10K", false, "250000"},
			{"JT-TUNE", "Tune Up", "SVC-TUNE", false, "350000"},
			{"JT-SPOORING", "Spooring & Balancing", "SVC-SPOOR", true, "200000"},
		}
		for _, j := range jobs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO cat_job_types (code, job_name, item_code, is_opl, default_rate)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (code) DO NOTHING
			`, j.code, j.name, j.item, j.opl, decimal.RequireFromString(j.rate)); err != nil {
				return fmt.Errorf("seed job type %s: %w", j.code, err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO cat_item_taxes (item_code, idx, tax_template)
				VALUES ($1, 1, 'PPN 11%')
				ON CONFLICT (item_code, idx) DO NOTHING
			`, j.item); err != nil {
				return fmt.Errorf("seed item tax %s: %w", j.item, err)
			}
		}

		// 3. Service packages
		if _, err := tx.Exec(ctx, `
			INSERT INTO cat_service_packages (code, package_name, item_code, is_active)
			VALUES ('PKG-BASIC', 'Paket Servis Basic', 'SVC-PKG-BASIC', true),
			       ('PKG-OLD', 'Paket Lama', 'SVC-PKG-OLD', false)
			ON CONFLICT (code) DO NOTHING
		`); err != nil {
			return fmt.Errorf("seed service packages: %w", err)
		}

		// 4. Parts, their barcodes and selling prices
		parts := []struct {
			code, name, item, barcode, uom string
			valuation, price               string
		}{
			{"P-OIL-10W40", "Oli Mesin 10W-40 1L", "ITM-OIL-10W40", "8991234500011", "Liter", "65000", "85000"},
			{"P-FLT-OIL", "Filter Oli", "ITM-FLT-OIL", "8991234500028", "Pcs", "32000", "45000"},
			{"P-BRK-PAD", "Kampas Rem Depan", "ITM-BRK-PAD", "8991234500035", "Set", "180000", "240000"},
			{"P-SPARK", "Busi Iridium", "ITM-SPARK", "", "Pcs", "0", "120000"},
		}
		for _, p := range parts {
			var barcode any
			if p.barcode != "" {
				barcode = p.barcode
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO cat_parts (code, part_name, item_code, barcode, uom, valuation_rate)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (code) DO NOTHING
			`, p.code, p.name, p.item, barcode, p.uom, decimal.RequireFromString(p.valuation)); err != nil {
				return fmt.Errorf("seed part %s: %w", p.code, err)
			}
			if p.barcode != "" {
				if _, err := tx.Exec(ctx, `
					INSERT INTO cat_item_barcodes (item_code, barcode)
					VALUES ($1, $2)
					ON CONFLICT (barcode) DO NOTHING
				`, p.item, p.barcode); err != nil {
					return fmt.Errorf("seed barcode %s: %w", p.barcode, err)
				}
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO cat_item_prices (item_code, price_list, price_list_rate, currency, selling)
				SELECT $1, 'Standard Selling', $2, 'IDR', true
				WHERE NOT EXISTS (
					SELECT 1 FROM cat_item_prices WHERE item_code = $1 AND price_list = 'Standard Selling'
				)
			`, p.item, decimal.RequireFromString(p.price)); err != nil {
				return fmt.Errorf("seed item price %s: %w", p.item, err)
			}
		}

		// 5. Service prices. The tune up rate changes at the start of next month.
		nextMonth := firstOfNextMonth(time.Now())
		prices := []struct {
			refType, refName, list, rate string
			from, upto                   *time.Time
			tax                          string
		}{
			{"Job Type", "JT-SRV-10K", "Standard Selling", "275000", nil, nil, "PPN 11%"},
			{"Job Type", "JT-TUNE", "Standard Selling", "350000", nil, ptr(nextMonth.AddDate(0, 0, -1)), ""},
			{"Job Type", "JT-TUNE", "Standard Selling", "380000", &nextMonth, nil, ""},
			{"Job Type", "JT-SRV-10K", "Fleet Contract", "225000", nil, nil, "PPN 11%"},
			{"Service Package", "PKG-BASIC", "Standard Selling", "550000", nil, nil, "PPN 11% + Service"},
		}
		for _, p := range prices {
			var tax any
			if p.tax != "" {
				tax = p.tax
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO cat_service_prices (
					id, created_by, updated_by, reference_type, reference_name,
					price_list, rate, currency, valid_from, valid_upto, is_active, tax_template
				)
				SELECT $1, 'seed', 'seed', $2, $3, $4, $5, 'IDR', $6, $7, true, $8
				WHERE NOT EXISTS (
					SELECT 1 FROM cat_service_prices
					WHERE reference_type = $2 AND reference_name = $3 AND price_list = $4
					  AND valid_from IS NOT DISTINCT FROM $6
				)
			`, id.New(), p.refType, p.refName, p.list, decimal.RequireFromString(p.rate), p.from, p.upto, tax); err != nil {
				return fmt.Errorf("seed service price %s/%s: %w", p.refName, p.list, err)
			}
		}

		// 6. Opening stock for the main warehouse
		stock := []struct {
			item, qty, rate string
		}{
			{"ITM-OIL-10W40", "40", "65000"},
			{"ITM-FLT-OIL", "25", "32000"},
			{"ITM-BRK-PAD", "6", "180000"},
		}
		for _, s := range stock {
			if _, err := tx.Exec(ctx, `
				INSERT INTO reg_stock_balances (warehouse, item_code, quantity, valuation_rate)
				VALUES ('Gudang Utama', $1, $2, $3)
				ON CONFLICT (warehouse, item_code) DO NOTHING
			`, s.item, decimal.RequireFromString(s.qty), decimal.RequireFromString(s.rate)); err != nil {
				return fmt.Errorf("seed balance %s: %w", s.item, err)
			}
		}

		log.Infow("demo data seeded",
			"job_types", len(jobs),
			"parts", len(parts),
			"service_prices", len(prices),
		)
		return nil
	})
}

func printAdminToken(secret string) error {
	cfg := auth.DefaultJWTConfig(secret)
	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		cfg.Issuer = issuer
	}
	cfg.AccessTokenTTL = 24 * time.Hour

	token, expiresAt, err := auth.NewJWTService(cfg).GenerateAccessToken(appctx.UserContext{
		UserID:  "seed-admin",
		Email:   "admin@workshop.local",
		Roles:   []string{"System Manager", "Accountant"},
		IsAdmin: true,
	})
	if err != nil {
		return err
	}
	fmt.Printf("admin token (expires %s):\n%s\n", expiresAt.Format(time.RFC3339), token)
	return nil
}

func firstOfNextMonth(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }
