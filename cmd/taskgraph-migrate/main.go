// cmd/taskgraph-migrate/main.go
package main

import (
	"fmt"
	"os"

	"github.com/diegoavarela/task-list-sub000/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{Use: "taskgraph-migrate"}

func newMigrate(cmd *cobra.Command) (*migrate.Migrate, error) {
	connStr, _ := cmd.Flags().GetString("db")
	if connStr == "" {
		connStr = config.Load().DBConnStr
	}
	if connStr == "" {
		return nil, fmt.Errorf("--db flag, DATABASE_URL or complete DB_* env vars (DB_USERNAME, DB_PASSWORD, DB_HOST, DB_PORT, DB_NAME) required")
	}
	dir, _ := cmd.Flags().GetString("path")
	m, err := migrate.New("file://"+dir, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return m, nil
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Run: func(cmd *cobra.Command, args []string) {
		m, err := newMigrate(cmd)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			fmt.Printf("Failed to apply migrations: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Migrations applied successfully")
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Run: func(cmd *cobra.Command, args []string) {
		m, err := newMigrate(cmd)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		if err := m.Steps(-1); err != nil {
			fmt.Printf("Failed to roll back migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Rolled back one migration")
	},
}

func main() {
	rootCmd.PersistentFlags().String("db", "", "Database connection string (optional if DATABASE_URL or DB_* env vars are set)")
	rootCmd.PersistentFlags().String("path", "migrations", "Directory holding the migration files")
	rootCmd.AddCommand(upCmd, downCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
