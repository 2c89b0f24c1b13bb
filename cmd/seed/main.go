package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tablepos/api/internal/config"
	"golang.org/x/crypto/bcrypt"
)

type seedUser struct {
	username string
	password string
	fullName string
	role     string
}

var defaultUsers = []seedUser{
	{"admin", "admin123", "Administrator", "admin"},
	{"manager", "manager123", "Floor Manager", "manager"},
	{"waiter1", "waiter123", "Waiter One", "waiter"},
	{"chef1", "chef123", "Chef One", "chef"},
}

func main() {
	// CLI flags
	name := flag.String("name", "", "Restaurant name")
	tables := flag.Int("tables", 10, "Number of tables to create")
	flag.Parse()

	// Fall back to environment variables, then defaults
	if *name == "" {
		*name = os.Getenv("SEED_RESTAURANT")
	}
	if *name == "" {
		*name = "My Restaurant"
	}

	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Seed in a transaction: restaurant, staff and tables or nothing.
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	restaurantID, created, err := seedRestaurant(ctx, tx, *name, cfg.Currency)
	if err != nil {
		log.Fatalf("Failed to seed restaurant: %v", err)
	}

	if created {
		for _, u := range defaultUsers {
			if err := seedStaff(ctx, tx, restaurantID, u); err != nil {
				log.Fatalf("Failed to seed user %s: %v", u.username, err)
			}
		}
		if err := seedTables(ctx, tx, restaurantID, *tables); err != nil {
			log.Fatalf("Failed to seed tables: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Seed completed successfully")
	log.Printf("Restaurant ID: %s", restaurantID)
	if created {
		log.Println("WARNING: Default staff passwords are in use. Change them immediately in production!")
	}
}

// seedRestaurant creates the restaurant unless one with the same name exists.
func seedRestaurant(ctx context.Context, tx pgx.Tx, name, currency string) (uuid.UUID, bool, error) {
	var existingID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM restaurants WHERE name = $1 LIMIT 1`, name).Scan(&existingID)
	if err == nil {
		log.Printf("Restaurant '%s' already exists (ID: %s), skipping", name, existingID)
		return existingID, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, fmt.Errorf("check restaurant: %w", err)
	}

	insertSQL := `
		INSERT INTO restaurants (name, address, phone, tax_rate, currency)
		VALUES ($1, $2, $3, 5.00, $4)
		RETURNING id
	`
	var newID uuid.UUID
	err = tx.QueryRow(ctx, insertSQL, name, "123 Main Street, City", "+1-234-567-8900", currency).Scan(&newID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("insert restaurant: %w", err)
	}

	log.Printf("Created restaurant '%s' (ID: %s)", name, newID)
	return newID, true, nil
}

func seedStaff(ctx context.Context, tx pgx.Tx, restaurantID uuid.UUID, u seedUser) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	insertSQL := `
		INSERT INTO users (restaurant_id, username, hashed_password, full_name, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO NOTHING
	`
	tag, err := tx.Exec(ctx, insertSQL, restaurantID, u.username, string(hashed), u.fullName, u.role)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Printf("User '%s' already exists, skipping", u.username)
		return nil
	}

	log.Printf("Created %s '%s'", u.role, u.username)
	return nil
}

func seedTables(ctx context.Context, tx pgx.Tx, restaurantID uuid.UUID, n int) error {
	for i := 1; i <= n; i++ {
		_, err := tx.Exec(ctx, `INSERT INTO dining_tables (restaurant_id, table_number, capacity) VALUES ($1, $2, 4)`, restaurantID, i)
		if err != nil {
			return fmt.Errorf("insert table %d: %w", i, err)
		}
	}
	log.Printf("Created %d tables", n)
	return nil
}
