package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_DefaultEnvironment(t *testing.T) {
	os.Unsetenv("ENV")
	cfg := Load()
	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected %q, got %q", EnvDevelopment, cfg.Environment)
	}
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	t.Setenv("ENV", "invalid")
	cfg := Load()
	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected %q for invalid ENV, got %q", EnvDevelopment, cfg.Environment)
	}
}

func TestLoad_ValidEnvironments(t *testing.T) {
	tests := []struct {
		env  string
		want Environment
	}{
		{"development", EnvDevelopment},
		{"staging", EnvStaging},
		{"production", EnvProduction},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("ENV", tt.env)
			cfg := Load()
			if cfg.Environment != tt.want {
				t.Errorf("expected %q, got %q", tt.want, cfg.Environment)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("OVERPASS_API_URL")
	os.Unsetenv("REPLICATION_URL")
	os.Unsetenv("COUNTRIES_GEOJSON_URL")
	os.Unsetenv("COUNTRY_UPDATE_DELAY")
	os.Unsetenv("DATA_DIR")

	cfg := Load()
	if cfg.OverpassURL != DefaultOverpassURL {
		t.Errorf("expected default overpass URL, got %q", cfg.OverpassURL)
	}
	if cfg.ReplicationURL != DefaultReplicationURL {
		t.Errorf("expected default replication URL, got %q", cfg.ReplicationURL)
	}
	if cfg.DataDir != "data" {
		t.Errorf("expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.CountryUpdateDelay != 24*time.Hour {
		t.Errorf("expected 24h country update delay, got %v", cfg.CountryUpdateDelay)
	}
}

func TestLoad_ReplicationURLTrailingSlash(t *testing.T) {
	t.Setenv("REPLICATION_URL", "https://mirror.example.com/replication/minute")
	cfg := Load()
	if cfg.ReplicationURL != "https://mirror.example.com/replication/minute/" {
		t.Errorf("expected trailing slash to be added, got %q", cfg.ReplicationURL)
	}
}

func TestLoad_CountryUpdateDelayFractionalDays(t *testing.T) {
	t.Setenv("COUNTRY_UPDATE_DELAY", "0.5")
	cfg := Load()
	if cfg.CountryUpdateDelay != 12*time.Hour {
		t.Errorf("expected 12h, got %v", cfg.CountryUpdateDelay)
	}
}

func TestLoad_CountryUpdateDelayInvalid(t *testing.T) {
	t.Setenv("COUNTRY_UPDATE_DELAY", "-3")
	cfg := Load()
	if cfg.CountryUpdateDelay != 24*time.Hour {
		t.Errorf("expected fallback to 24h, got %v", cfg.CountryUpdateDelay)
	}
}
