package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedCategories(db)
	seedProducts(db)
	seedDiscounts(db)
	seedTaxRates(db)

	log.Println("Seeding completed successfully!")
}

func seedCategories(db *sql.DB) {
	categories := []string{
		"Beverages",
		"Snacks",
		"Groceries",
		"Household",
		"Personal Care",
		"Frozen",
	}

	fmt.Println("Seeding Categories...")
	for _, name := range categories {
		_, err := db.Exec(`
			INSERT INTO categories (name) VALUES ($1)
			ON CONFLICT (name) DO NOTHING;
		`, name)
		if err != nil {
			log.Printf("Failed to seed category %s: %v", name, err)
		}
	}
}

func seedProducts(db *sql.DB) {
	products := []struct {
		Name     string
		SKU      string
		Category string
		Price    string
		Stock    int
	}{
		{"Bottled Water 500ml", "BEV-WATER-500", "Beverages", "15.00", 500},
		{"Iced Tea 1L", "BEV-TEA-1000", "Beverages", "45.00", 200},
		{"Instant Coffee 3-in-1", "BEV-COFFEE-3N1", "Beverages", "9.50", 800},
		{"Potato Chips 60g", "SNK-CHIPS-60", "Snacks", "32.00", 300},
		{"Chocolate Bar", "SNK-CHOCO-STD", "Snacks", "55.00", 250},
		{"Jasmine Rice 5kg", "GRO-RICE-5KG", "Groceries", "285.00", 80},
		{"Cooking Oil 1L", "GRO-OIL-1L", "Groceries", "160.00", 120},
		{"Canned Sardines", "GRO-SARD-STD", "Groceries", "28.00", 400},
		{"Dish Soap 250ml", "HHD-SOAP-250", "Household", "42.00", 150},
		{"Laundry Detergent 1kg", "HHD-DET-1KG", "Household", "118.00", 90},
		{"Shampoo Sachet", "PC-SHAM-SCH", "Personal Care", "7.50", 1000},
		{"Toothpaste 150g", "PC-TOOTH-150", "Personal Care", "89.00", 140},
		{"Frozen Chicken 1kg", "FRZ-CHIX-1KG", "Frozen", "195.00", 60},
	}

	fmt.Println("Seeding Products...")
	for _, p := range products {
		var productID int64
		err := db.QueryRow(`
			INSERT INTO products (name, sku, category, price, is_active)
			VALUES ($1, $2, $3, $4, true)
			ON CONFLICT (sku) DO UPDATE SET
				name = EXCLUDED.name,
				category = EXCLUDED.category,
				price = EXCLUDED.price
			RETURNING id;
		`, p.Name, p.SKU, p.Category, p.Price).Scan(&productID)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Name, err)
			continue
		}

		_, err = db.Exec(`
			INSERT INTO inventories (product_id, quantity, low_stock_threshold)
			VALUES ($1, $2, 10)
			ON CONFLICT (product_id) DO UPDATE SET quantity = EXCLUDED.quantity;
		`, productID, p.Stock)
		if err != nil {
			log.Printf("Failed to seed inventory for %s: %v", p.Name, err)
		}

		_, err = db.Exec(`
			INSERT INTO prices (product_id, amount, effective_date)
			SELECT $1, $2, NOW()
			WHERE NOT EXISTS (SELECT 1 FROM prices WHERE product_id = $1);
		`, productID, p.Price)
		if err != nil {
			log.Printf("Failed to seed price for %s: %v", p.Name, err)
		}
	}
}

func seedDiscounts(db *sql.DB) {
	discounts := []struct {
		Code      *string
		Kind      string
		Value     string
		MinQty    int
		Priority  int
		Stackable bool
	}{
		{strPtr("CODE10"), "percent", "10.00", 0, 100, true},
		{strPtr("WELCOME50"), "fixed", "50.00", 0, 90, false},
		{nil, "fixed", "20.00", 5, 50, true},
	}

	fmt.Println("Seeding Discounts...")
	for _, d := range discounts {
		_, err := db.Exec(`
			INSERT INTO discounts (code, type, value, min_quantity, priority, is_stackable, starts_at, ends_at, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW() + INTERVAL '1 year', true)
			ON CONFLICT (code) DO NOTHING;
		`, d.Code, d.Kind, d.Value, d.MinQty, d.Priority, d.Stackable)
		if err != nil {
			log.Printf("Failed to seed discount: %v", err)
		}
	}
}

func seedTaxRates(db *sql.DB) {
	fmt.Println("Seeding Tax Rates...")
	_, err := db.Exec(`
		INSERT INTO tax_rates (name, percentage, type, is_active)
		SELECT 'VAT', 12.0, 'exclusive', true
		WHERE NOT EXISTS (SELECT 1 FROM tax_rates WHERE name = 'VAT');
	`)
	if err != nil {
		log.Printf("Failed to seed tax rate: %v", err)
	}
}

func strPtr(s string) *string { return &s }
