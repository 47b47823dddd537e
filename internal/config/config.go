package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	LogLevel   string
}

// Load reads a .env file when present, then the environment, with
// local-development defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getenv("DB_PORT", "5432"))
	if err != nil {
		return nil, err
	}
	return &Config{
		ServerAddr: getenv("SERVER_ADDR", ":8080"),
		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     port,
		DBUser:     getenv("DB_USER", "postgres"),
		DBPassword: getenv("DB_PASSWORD", "postgres"),
		DBName:     getenv("DB_NAME", "pointdeck"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
