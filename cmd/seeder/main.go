package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/shelfhero/shelfhero/internal/config"
	"github.com/shelfhero/shelfhero/internal/database"
	"github.com/shelfhero/shelfhero/internal/models"
	"github.com/shelfhero/shelfhero/internal/services"
)

// PriceRow is one observation from the seed data:
// retailer code, raw product name, unit price in leva
type PriceRow struct {
	RetailerCode string
	ProductName  string
	UnitPrice    float64
}

// demoRows covers the known retailers with a small overlapping basket
// so price rankings and basket optimization have data out of the box
var demoRows = []PriceRow{
	{"kaufland", "Хляб Добруджа 650г", 1.89},
	{"kaufland", "Прясно мляко Верея 3.6% 1л", 2.79},
	{"kaufland", "Кисело мляко Саяна 3.6% 400г", 1.45},
	{"kaufland", "Сирене краве БДС 400г", 8.99},
	{"kaufland", "Банани 1кг", 2.99},
	{"lidl", "Хляб Добруджа 650г", 1.75},
	{"lidl", "Прясно мляко Верея 3.6% 1л", 2.85},
	{"lidl", "Кисело мляко Саяна 3.6% 400г", 1.39},
	{"lidl", "Минерална вода Девин 1.5л", 1.09},
	{"billa", "Прясно мляко Верея 3.6% 1л", 2.95},
	{"billa", "Сирене краве БДС 400г", 9.49},
	{"billa", "Минерална вода Девин 1.5л", 1.19},
	{"billa", "Банани 1кг", 3.19},
	{"fantastico", "Хляб Добруджа 650г", 1.95},
	{"fantastico", "Кисело мляко Саяна 3.6% 400г", 1.49},
	{"fantastico", "Минерална вода Девин 1.5л", 1.15},
}

func main() {
	dryRun := flag.Bool("dry-run", false, "Preview changes without writing to database")
	localFile := flag.String("file", "", "Seed prices from a CSV file (retailer_code,product_name,price) instead of the built-in demo set")
	flag.Parse()

	godotenv.Load()

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	rows := demoRows
	if *localFile != "" {
		file, err := os.Open(*localFile)
		if err != nil {
			log.Fatalf("Failed to open seed file: %v", err)
		}
		defer file.Close()

		rows, err = parseSeedFile(file)
		if err != nil {
			log.Fatalf("Failed to parse seed file: %v", err)
		}
		log.Printf("Loaded %d price rows from %s", len(rows), *localFile)
	}

	if *dryRun {
		log.Println("DRY RUN - No changes will be made")
		printPreview(rows)
		return
	}

	seeded, err := seedPrices(db, rows)
	if err != nil {
		log.Fatalf("Failed to seed prices: %v", err)
	}

	log.Printf("Seeding complete: %d prices recorded", seeded)
}

// parseSeedFile reads retailer_code,product_name,price rows
func parseSeedFile(reader io.Reader) ([]PriceRow, error) {
	csvReader := csv.NewReader(bufio.NewReader(reader))
	csvReader.FieldsPerRecord = 3

	var rows []PriceRow
	lineNo := 0
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed row: %v", err)
			continue
		}
		lineNo++

		// Allow a header row
		if lineNo == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "retailer_code") {
			continue
		}

		price, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			log.Printf("Warning: skipping row %d, bad price %q", lineNo, record[2])
			continue
		}

		code := strings.ToLower(strings.TrimSpace(record[0]))
		name := strings.TrimSpace(record[1])
		if code == "" || name == "" || price <= 0 {
			log.Printf("Warning: skipping row %d, incomplete data", lineNo)
			continue
		}

		rows = append(rows, PriceRow{
			RetailerCode: code,
			ProductName:  name,
			UnitPrice:    price,
		})
	}

	return rows, nil
}

// seedPrices resolves each row through the normalizer and records the
// price observation. Re-running the seeder is safe: products resolve to
// their existing rows and prices upsert.
func seedPrices(db *database.DB, rows []PriceRow) (int, error) {
	ctx := context.Background()

	normalizer := services.NewNormalizer(db)
	categorizer := services.NewCategorizer(nil, nil)

	formats := make(map[string]string)
	for _, f := range services.KnownFormats() {
		formats[f.Code] = f.Name
	}

	seeded := 0
	for _, row := range rows {
		name, ok := formats[row.RetailerCode]
		if !ok {
			name = strings.ToUpper(row.RetailerCode[:1]) + row.RetailerCode[1:]
		}

		retailer, err := db.GetOrCreateRetailer(ctx, row.RetailerCode, name)
		if err != nil {
			return seeded, fmt.Errorf("resolving retailer %q: %w", row.RetailerCode, err)
		}

		product, _, err := normalizer.Resolve(ctx, row.ProductName)
		if err != nil {
			return seeded, fmt.Errorf("resolving product %q: %w", row.ProductName, err)
		}

		if product.CategoryID == nil {
			result := categorizer.Categorize(ctx, product.DisplayName)
			if err := db.SetProductCategory(ctx, product.ID, result.CategoryCode); err != nil {
				log.Printf("Warning: categorizing %q: %v", product.DisplayName, err)
			}
		}

		err = db.UpsertCurrentPrice(ctx, &models.CurrentPrice{
			MasterProductID: product.ID,
			RetailerID:      retailer.ID,
			UnitPrice:       row.UnitPrice,
			SeenAt:          time.Now(),
		})
		if err != nil {
			return seeded, fmt.Errorf("recording price for %q at %q: %w", row.ProductName, row.RetailerCode, err)
		}
		seeded++
	}

	return seeded, nil
}

func printPreview(rows []PriceRow) {
	fmt.Printf("\n=== Preview of prices to seed ===\n")
	fmt.Printf("Total: %d rows\n\n", len(rows))

	byRetailer := make(map[string]int)
	for _, row := range rows {
		byRetailer[row.RetailerCode]++
	}
	fmt.Println("Rows per retailer:")
	for code, count := range byRetailer {
		fmt.Printf("  %s: %d\n", code, count)
	}

	fmt.Println("\nSample rows:")
	for i, row := range rows {
		if i >= 10 {
			break
		}
		fmt.Printf("  %-12s %-40s %.2f лв\n", row.RetailerCode, row.ProductName, row.UnitPrice)
	}
}
