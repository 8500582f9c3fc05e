package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

const ledgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	filename   TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping: %v", err)
	}
	log.Println("Connected to database")

	if _, err := db.ExecContext(ctx, ledgerDDL); err != nil {
		log.Fatalf("create schema_migrations: %v", err)
	}
	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		log.Fatal(err)
	}

	files, err := migrationFiles(dir)
	if err != nil {
		log.Fatal(err)
	}

	if listOnly {
		for _, f := range files {
			state := "pending"
			if applied[f] {
				state = "applied"
			}
			fmt.Printf("  %-40s %s\n", f, state)
		}
		return
	}

	var okCount, skipCount int
	for _, f := range files {
		if applied[f] {
			skipCount++
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		fmt.Printf("  %s ... ", f)
		if err := apply(ctx, db, f, string(data)); err != nil {
			fmt.Println("ERROR")
			log.Fatalf("%s: %v", f, err)
		}
		fmt.Println("OK")
		okCount++
	}
	log.Printf("Done: %d applied, %d already applied", okCount, skipCount)
}

func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func appliedMigrations(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()
	applied := make(map[string]bool)
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		applied[f] = true
	}
	return applied, rows.Err()
}

// apply runs one migration file and records it in the same transaction.
func apply(ctx context.Context, db *sql.DB, name, content string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, content); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
		return err
	}
	return tx.Commit()
}
