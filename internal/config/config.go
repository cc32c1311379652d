package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/order-dispatch/internal/models"
)

// ClassProfile holds the dispatch tunables for one vehicle class. Lighter
// classes get a short lookahead and a tight radius; heavier and specialty
// classes get a longer lookahead and a looser radius.
type ClassProfile struct {
	RadiusKm  float64
	LeadTime  time.Duration
	Lookahead time.Duration
}

// ServerConfig captures all tunable parameters for the dispatch process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string

	KafkaBrokers       []string
	KafkaTopic         string
	KafkaLocationTopic string

	PGDSN string

	OSRMEndpoint    string
	DefaultSpeedMps float64

	// OfferNonMatching controls whether couriers whose vehicle class does not
	// match the order still receive offers, after the matching group.
	OfferNonMatching bool

	ClassProfiles map[models.VehicleClass]ClassProfile

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:           ":8080",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        120 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		KafkaTopic:         "order-status",
		KafkaLocationTopic: "driver-locations",
		DefaultSpeedMps:    10,
		ClassProfiles: map[models.VehicleClass]ClassProfile{
			models.ClassSedan:        {RadiusKm: 15, LeadTime: 10 * time.Minute, Lookahead: 15 * time.Minute},
			models.ClassVan:          {RadiusKm: 25, LeadTime: 20 * time.Minute, Lookahead: 30 * time.Minute},
			models.ClassTruck:        {RadiusKm: 40, LeadTime: 45 * time.Minute, Lookahead: 60 * time.Minute},
			models.ClassRefrigerated: {RadiusKm: 40, LeadTime: 45 * time.Minute, Lookahead: 60 * time.Minute},
		},
		LogLevel: "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaLocationTopic, "KAFKA_LOCATION_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setStringFromEnv(&cfg.OSRMEndpoint, "OSRM_ENDPOINT")
	setFloatFromEnv(&cfg.DefaultSpeedMps, "DISPATCH_DEFAULT_SPEED_MPS", &errs)

	cfg.OfferNonMatching = strings.EqualFold(os.Getenv("DISPATCH_OFFER_NON_MATCHING"), "true")

	for class := range cfg.ClassProfiles {
		loadClassProfile(cfg.ClassProfiles, class, &errs)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	for class, p := range cfg.ClassProfiles {
		if p.RadiusKm <= 0 {
			errs = append(errs, fmt.Errorf("radius for class %s must be > 0", class))
		}
		if p.LeadTime <= 0 {
			errs = append(errs, fmt.Errorf("lead time for class %s must be > 0", class))
		}
	}

	return cfg, errors.Join(errs...)
}

// loadClassProfile overrides one class profile from env vars of the form
// DISPATCH_CLASS_SEDAN_RADIUS_KM, DISPATCH_CLASS_SEDAN_LEAD_TIME, etc.
func loadClassProfile(profiles map[models.VehicleClass]ClassProfile, class models.VehicleClass, errs *[]error) {
	prefix := "DISPATCH_CLASS_" + strings.ToUpper(string(class)) + "_"
	p := profiles[class]
	setFloatFromEnv(&p.RadiusKm, prefix+"RADIUS_KM", errs)
	setDurationFromEnv(&p.LeadTime, prefix+"LEAD_TIME", errs)
	setDurationFromEnv(&p.Lookahead, prefix+"LOOKAHEAD", errs)
	profiles[class] = p
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
