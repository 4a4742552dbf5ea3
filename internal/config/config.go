package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	// Print job server
	JobRetention  time.Duration
	SweepInterval time.Duration

	// Receipt rendering
	ReceiptHeader  string
	ReceiptFooter  string
	ReceiptQRURL   string
	PrinterMAC     string
	PrinterDialect string

	// Device agent
	BackendURL     string
	StateFile      string
	MaxRetries     int
	FlushInterval  time.Duration
	FlushItemDelay time.Duration
	ProbeInterval  time.Duration
	SettleDelay    time.Duration
	RequestTimeout time.Duration
	AgentPort      string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    getEnv("APP_PORT", "8080"),
		AppEnv:     os.Getenv("APP_ENV"),

		JobRetention:  getDuration("JOB_RETENTION", time.Hour),
		SweepInterval: getDuration("SWEEP_INTERVAL", time.Minute),

		ReceiptHeader:  getEnv("RECEIPT_HEADER", "Trattoria"),
		ReceiptFooter:  getEnv("RECEIPT_FOOTER", "Danke fuer Ihre Bestellung!"),
		ReceiptQRURL:   getEnv("RECEIPT_QR_URL", "https://trattoria.example/menu"),
		PrinterMAC:     os.Getenv("PRINTER_MAC"),
		PrinterDialect: getEnv("PRINTER_DIALECT", "escpos"),

		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8080"),
		StateFile:      getEnv("AGENT_STATE_FILE", "offline-queue.json"),
		MaxRetries:     getInt("MAX_RETRIES", 5),
		FlushInterval:  getDuration("FLUSH_INTERVAL", 3*time.Minute),
		FlushItemDelay: getDuration("FLUSH_ITEM_DELAY", 500*time.Millisecond),
		ProbeInterval:  getDuration("PROBE_INTERVAL", 15*time.Second),
		SettleDelay:    getDuration("SETTLE_DELAY", 5*time.Second),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 15*time.Second),
		AgentPort:      getEnv("AGENT_PORT", "8090"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

// LoadAgentConfig is LoadConfig without the database requirement; the device
// agent never talks to Postgres directly.
func LoadAgentConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		AppEnv:         os.Getenv("APP_ENV"),
		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8080"),
		StateFile:      getEnv("AGENT_STATE_FILE", "offline-queue.json"),
		MaxRetries:     getInt("MAX_RETRIES", 5),
		FlushInterval:  getDuration("FLUSH_INTERVAL", 3*time.Minute),
		FlushItemDelay: getDuration("FLUSH_ITEM_DELAY", 500*time.Millisecond),
		ProbeInterval:  getDuration("PROBE_INTERVAL", 15*time.Second),
		SettleDelay:    getDuration("SETTLE_DELAY", 5*time.Second),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 15*time.Second),
		AgentPort:      getEnv("AGENT_PORT", "8090"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid value for %s: %q, using default", key, v)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid value for %s: %q, using default", key, v)
		return fallback
	}
	return d
}
