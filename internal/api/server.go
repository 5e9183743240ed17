package api

import (
	"strings"

	"routepay/internal/auth"
	"routepay/internal/config"
	"routepay/internal/model"
	"routepay/internal/notify"
	"routepay/internal/store"
)

type Server struct {
	Store    store.Store
	Auth     *auth.Verifier
	Broker   EventBroker
	Notifier *notify.Notifier
	Rates    model.PayRates

	ingestLimiter *ingestLimiter
}

// NewServer wires the service from config. If DATABASE_URL is unset, uses
// the in-memory store.
func NewServer(cfg config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.DBMigrate {
			if err := sp.MigrateDir("db/migrations"); err != nil {
				return nil, err
			}
		}
		s = sp
	}
	var broker EventBroker
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		broker = rb
	} else {
		broker = NewBroker()
	}
	return &Server{
		Store:         s,
		Auth:          auth.NewVerifier(cfg.AuthMode, cfg.AuthHMACSecret),
		Broker:        broker,
		Notifier:      notify.New(cfg.NotifyURL, cfg.NotifySecret),
		Rates:         model.PayRates{FirstStop: cfg.PayRateFirstStop, DoubleStop: cfg.PayRateDoubleStop},
		ingestLimiter: newIngestLimiter(cfg.RateRPS, cfg.RateBurst),
	}, nil
}
