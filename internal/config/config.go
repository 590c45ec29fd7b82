package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const (
	DefaultTasksFile = "tasks.yaml"
	DefaultPort      = "8080"
)

// Config holds the settings shared by the CLI, the server and the migration tool.
type Config struct {
	DBConnStr string // Empty means the YAML file store is used
	TasksFile string
	LogLevel  string
	Port      string
}

// Load reads .env (when present) and the process environment.
func Load() Config {
	// A missing .env is fine, plain env vars still apply
	_ = godotenv.Load()

	cfg := Config{
		DBConnStr: DBConnStrFromEnv(),
		TasksFile: os.Getenv("TASKS_FILE"),
		LogLevel:  os.Getenv("LOG_LEVEL"),
		Port:      os.Getenv("PORT"),
	}
	if cfg.TasksFile == "" {
		cfg.TasksFile = DefaultTasksFile
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	return cfg
}

// DBConnStrFromEnv prefers DATABASE_URL and otherwise builds a postgres URL from
// DB_USERNAME, DB_PASSWORD, DB_HOST, DB_PORT and DB_NAME. It returns "" when
// the tuple is incomplete.
func DBConnStrFromEnv() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	dbUsername := os.Getenv("DB_USERNAME")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")
	if dbUsername == "" || dbPassword == "" || dbHost == "" || dbPort == "" || dbName == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUsername, dbPassword, dbHost, dbPort, dbName)
}
