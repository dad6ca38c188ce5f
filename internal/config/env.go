package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Default file locations of the Code-Point Open extract
const (
	DefaultInputPath    = "./data/os-codepoint-open/codepo_gb.parquet"
	DefaultCodelistPath = "./data/os-codepoint-open/Codelist.xlsx"
	DefaultOutputPath   = "./data/os-codepoint-open/codepo_gb_imputed.parquet"
	DefaultPointTable   = "codepoint_imputed"
)

// LoadEnv loads environment variables from the first .env file found in the
// current or parent directories. Variables already set are not overridden.
func LoadEnv() error {
	envPaths := []string{".env", "../.env", "../../.env"}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		return godotenv.Load(envPath)
	}
	return nil
}

// Settings is the resolved configuration of an impute run
type Settings struct {
	InputPath    string
	CodelistPath string
	OutputPath   string
	MaxDistance  float64
	WardPolicy   string
	MetricsFile  string
	Debug        bool
}

// LoadSettings resolves settings from the environment with built-in defaults
func LoadSettings() Settings {
	return Settings{
		InputPath:    GetEnv("CODEPOINT_INPUT", DefaultInputPath),
		CodelistPath: GetEnv("CODEPOINT_CODELIST", DefaultCodelistPath),
		OutputPath:   GetEnv("CODEPOINT_OUTPUT", DefaultOutputPath),
		MaxDistance:  GetEnvFloat("CODEPOINT_MAX_DISTANCE", 0),
		WardPolicy:   GetEnv("CODEPOINT_WARD_POLICY", "independent"),
		MetricsFile:  GetEnv("CODEPOINT_METRICS_FILE", ""),
		Debug:        GetEnvBool("CODEPOINT_DEBUG", false),
	}
}

// GetEnv gets environment variable with default
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets integer environment variable with default
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvFloat gets float environment variable with default
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvBool gets boolean environment variable with default
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}
