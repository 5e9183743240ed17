package config

import (
    "fmt"
    "os"
    "strconv"

    "github.com/joho/godotenv"
)

// Config is the full process configuration, read once at startup.
type Config struct {
    Port        string
    DatabaseURL string
    DBMigrate   bool
    RedisURL    string

    AuthMode       string // "dev" or "hmac"
    AuthHMACSecret string

    RateRPS   float64
    RateBurst int

    NotifyURL    string
    NotifySecret string

    PayRateFirstStop  float64
    PayRateDoubleStop float64

    LogLevel string
}

// Load reads .env (if present) and the environment. Missing optional values
// fall back to development defaults; malformed numbers are errors.
func Load() (Config, error) {
    _ = godotenv.Load()

    cfg := Config{
        Port:           getenv("PORT", "8080"),
        DatabaseURL:    os.Getenv("DATABASE_URL"),
        RedisURL:       os.Getenv("REDIS_URL"),
        AuthMode:       getenv("AUTH_MODE", "dev"),
        AuthHMACSecret: os.Getenv("AUTH_HMAC_SECRET"),
        NotifyURL:      os.Getenv("NOTIFY_URL"),
        NotifySecret:   os.Getenv("NOTIFY_SECRET"),
        LogLevel:       getenv("LOG_LEVEL", "info"),
    }
    var err error
    if cfg.DBMigrate, err = boolenv("DB_MIGRATE", false); err != nil {
        return cfg, err
    }
    if cfg.RateRPS, err = floatenv("RATE_RPS", 2); err != nil {
        return cfg, err
    }
    if cfg.RateBurst, err = intenv("RATE_BURST", 4); err != nil {
        return cfg, err
    }
    if cfg.PayRateFirstStop, err = floatenv("PAY_RATE_FIRST_STOP", 1.75); err != nil {
        return cfg, err
    }
    if cfg.PayRateDoubleStop, err = floatenv("PAY_RATE_DOUBLE_STOP", 0.95); err != nil {
        return cfg, err
    }
    if cfg.AuthMode == "hmac" && cfg.AuthHMACSecret == "" {
        return cfg, fmt.Errorf("AUTH_MODE=hmac requires AUTH_HMAC_SECRET")
    }
    return cfg, nil
}

func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func boolenv(key string, def bool) (bool, error) {
    v := os.Getenv(key)
    if v == "" {
        return def, nil
    }
    b, err := strconv.ParseBool(v)
    if err != nil {
        return def, fmt.Errorf("%s: %w", key, err)
    }
    return b, nil
}

func intenv(key string, def int) (int, error) {
    v := os.Getenv(key)
    if v == "" {
        return def, nil
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        return def, fmt.Errorf("%s: %w", key, err)
    }
    return n, nil
}

func floatenv(key string, def float64) (float64, error) {
    v := os.Getenv(key)
    if v == "" {
        return def, nil
    }
    f, err := strconv.ParseFloat(v, 64)
    if err != nil {
        return def, fmt.Errorf("%s: %w", key, err)
    }
    return f, nil
}
