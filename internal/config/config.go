package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port           string
	CORSOrigins    []string
	MaxUploadBytes int64

	// Storage
	DataBackend  string
	SQLiteDBPath string
	DatabaseDSN  string

	// Auth
	JWTSecret      string
	JWTAlgorithm   string
	AccessTokenTTL time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Text generation
	TextGenProvider string
	GeminiAPIKey    string
	GeminiModel     string
	OpenAIAPIKey    string
	OpenAIModel     string
	TextGenTimeout  time.Duration
	InsightsProfile string

	// Receipts
	OCRProvider         string
	TesseractPath       string
	GoogleVisionAPIKey  string
	OCRTimeout          time.Duration
	ReceiptBucket       string

	// Google Sheets export
	GoogleSpreadsheetID            string
	GoogleSheetName                string
	GoogleServiceAccountJSON       string
	GoogleServiceAccountFile       string
	GoogleApplicationCredentials   string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// Logging
	LogLevel string
}

const defaultJWTSecret = "dev-secret-change-me"

func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "8081"),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"*"}),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/spendwise.db"),
		DatabaseDSN:  getEnv("DATABASE_DSN", ""),

		JWTSecret:      getEnv("JWT_SECRET", defaultJWTSecret),
		JWTAlgorithm:   getEnv("JWT_ALGORITHM", "HS256"),
		AccessTokenTTL: time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 1440)) * time.Minute,

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spendwise"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_changes"),

		TextGenProvider: getEnv("TEXTGEN_PROVIDER", "none"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		TextGenTimeout:  getEnvDuration("TEXTGEN_TIMEOUT", 20*time.Second),
		InsightsProfile: getEnv("INSIGHTS_PROFILE", "full"),

		OCRProvider:        getEnv("OCR_PROVIDER", "tesseract"),
		TesseractPath:      getEnv("TESSERACT_PATH", "tesseract"),
		GoogleVisionAPIKey: getEnv("GOOGLE_VISION_API_KEY", ""),
		OCRTimeout:         getEnvDuration("OCR_TIMEOUT", 30*time.Second),
		ReceiptBucket:      getEnv("RECEIPT_BUCKET", ""),

		GoogleSpreadsheetID:          getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:              getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountJSON:     getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile:     getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleApplicationCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 5*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.MaxUploadBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be positive", c.MaxUploadBytes))
	}

	// Validate data backend
	validBackends := []string{"memory", "postgres", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "postgres" && c.DatabaseDSN == "" {
		errors = append(errors, "DATABASE_DSN is required when using postgres backend")
	}

	// Validate auth
	if len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT secret must be at least 16 characters")
	}
	validAlgorithms := []string{"HS256", "HS384", "HS512"}
	if !slices.Contains(validAlgorithms, c.JWTAlgorithm) {
		errors = append(errors, fmt.Sprintf("invalid JWT algorithm '%s': must be one of %v", c.JWTAlgorithm, validAlgorithms))
	}
	if c.AccessTokenTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid access token lifetime %v: must be positive", c.AccessTokenTTL))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate text generation
	switch c.TextGenProvider {
	case "none":
	case "gemini":
		if c.GeminiAPIKey == "" {
			errors = append(errors, "GEMINI_API_KEY is required when TEXTGEN_PROVIDER is gemini")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			errors = append(errors, "OPENAI_API_KEY is required when TEXTGEN_PROVIDER is openai")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid text generation provider '%s': must be one of [gemini none openai]", c.TextGenProvider))
	}
	if c.TextGenTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid text generation timeout %v: must be positive", c.TextGenTimeout))
	}
	if c.InsightsProfile != "full" && c.InsightsProfile != "brief" {
		errors = append(errors, fmt.Sprintf("invalid insights profile '%s': must be 'full' or 'brief'", c.InsightsProfile))
	}

	// Validate OCR
	switch c.OCRProvider {
	case "tesseract":
		if c.TesseractPath == "" {
			errors = append(errors, "TESSERACT_PATH cannot be empty when OCR_PROVIDER is tesseract")
		}
	case "vision":
		if c.GoogleVisionAPIKey == "" {
			errors = append(errors, "GOOGLE_VISION_API_KEY is required when OCR_PROVIDER is vision")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid OCR provider '%s': must be 'tesseract' or 'vision'", c.OCRProvider))
	}
	if c.OCRTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid OCR timeout %v: must be positive", c.OCRTimeout))
	}

	// Validate Google Sheets export if enabled
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Validate worker configuration
	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// SheetsEnabled reports whether the spreadsheet export is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
