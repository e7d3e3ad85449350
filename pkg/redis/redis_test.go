package redis

import (
	"context"
	"testing"

	"gridfeed/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
}

func TestCache_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, _ := New(cfg)
	cache := NewCache(client, "gridfeed")

	// When Redis is disabled, cache operations should be no-ops
	var result string
	found, err := cache.Get(context.Background(), "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}

	if err := cache.Set(context.Background(), "key", "value", TTLShort); err != nil {
		t.Errorf("Set() error = %v", err)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := QualityReportKey(); got != "quality:report" {
		t.Errorf("QualityReportKey() = %q", got)
	}

	if got := GapKey("SBER.ME", "2026-08-28"); got != "gaps:SBER.ME:2026-08-28" {
		t.Errorf("GapKey() = %q", got)
	}
}
