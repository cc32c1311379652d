package config

import (
	"testing"
	"time"

	"github.com/example/order-dispatch/internal/models"
)

func TestDefaultsCoverEveryVehicleClass(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, class := range []models.VehicleClass{models.ClassSedan, models.ClassVan, models.ClassTruck, models.ClassRefrigerated} {
		p, ok := cfg.ClassProfiles[class]
		if !ok {
			t.Fatalf("no profile for %s", class)
		}
		if p.RadiusKm <= 0 || p.LeadTime <= 0 || p.Lookahead <= 0 {
			t.Fatalf("profile for %s not fully populated: %+v", class, p)
		}
	}
}

func TestClassProfileEnvOverride(t *testing.T) {
	t.Setenv("DISPATCH_CLASS_SEDAN_RADIUS_KM", "7.5")
	t.Setenv("DISPATCH_CLASS_SEDAN_LEAD_TIME", "4m")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p := cfg.ClassProfiles[models.ClassSedan]
	if p.RadiusKm != 7.5 {
		t.Fatalf("radius override ignored: %f", p.RadiusKm)
	}
	if p.LeadTime != 4*time.Minute {
		t.Fatalf("lead time override ignored: %s", p.LeadTime)
	}
	// Untouched classes keep their defaults.
	if cfg.ClassProfiles[models.ClassVan].RadiusKm != 25 {
		t.Fatal("override leaked into another class")
	}
}

func TestInvalidEnvIsReported(t *testing.T) {
	t.Setenv("DISPATCH_CLASS_SEDAN_RADIUS_KM", "not-a-number")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected a configuration error")
	}
}

func TestBrokerListParsing(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,,")
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "a:9092" || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("broker list parsed wrong: %v", cfg.KafkaBrokers)
	}
}
