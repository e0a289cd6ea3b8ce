package config

import (
	"testing"
	"time"
)

func TestDefaultTuningIsValid(t *testing.T) {
	if err := DefaultTuning().Validate(); err != nil {
		t.Fatalf("default tuning invalid: %v", err)
	}
	if got := len(DefaultTuning().Addiction.WithdrawalEffects); got != 5 {
		t.Fatalf("expected 5 withdrawal effects, got %d", got)
	}
}

func TestParseTuningOverlaysDefaults(t *testing.T) {
	raw := []byte(`
production:
  base_time: 10m
lab:
  locations:
    shipping_container:
      name: Shipping Container
      risk_modifier: 8
      production_modifier: 15
      setup_cost: 6000
`)
	tuning, err := ParseTuning(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tuning.Production.BaseTime != 10*time.Minute {
		t.Fatalf("expected base time 10m, got %s", tuning.Production.BaseTime)
	}
	if _, ok := tuning.Lab.Locations["shipping_container"]; !ok {
		t.Fatalf("expected added location")
	}
	if _, ok := tuning.Lab.Locations["suburban_basement"]; !ok {
		t.Fatalf("expected default locations to survive the overlay")
	}
	if tuning.Market.MaxRestrictionHours != 24 {
		t.Fatalf("expected untouched market defaults, got %d", tuning.Market.MaxRestrictionHours)
	}
}

func TestParseTuningRejectsInvalid(t *testing.T) {
	if _, err := ParseTuning([]byte("addiction:\n  withdrawal_effects: []\n")); err == nil {
		t.Fatalf("expected empty withdrawal catalog to be rejected")
	}
	if _, err := ParseTuning([]byte("production: [")); err == nil {
		t.Fatalf("expected malformed yaml to be rejected")
	}
}
