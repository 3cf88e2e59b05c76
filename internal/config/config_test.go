package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.StoreDriver != DriverMemory {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, DriverMemory)
	}
	if !cfg.UsingInsecureSecret() {
		t.Error("expected fallback secret when JWT_SECRET is empty")
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("SNOWFLAKE_NODE", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.JWTSecret != "s3cret" || cfg.UsingInsecureSecret() {
		t.Errorf("unexpected port/secret: %+v", cfg)
	}
	if cfg.StoreDriver != DriverPostgres {
		t.Errorf("StoreDriver = %q", cfg.StoreDriver)
	}
	if got := strings.Join(cfg.CORSOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Errorf("CORSOrigins = %q", got)
	}
	if cfg.BcryptCost != 10 || cfg.SnowflakeNode != 7 {
		t.Errorf("BcryptCost=%d SnowflakeNode=%d", cfg.BcryptCost, cfg.SnowflakeNode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory ok", Config{StoreDriver: DriverMemory, BcryptCost: 10}, ""},
		{"mongo without uri", Config{StoreDriver: DriverMongo, BcryptCost: 10}, "MONGO_URI"},
		{"mongo ok", Config{StoreDriver: DriverMongo, MongoURI: "mongodb://x", MongoDatabase: "clinic", BcryptCost: 10}, ""},
		{"postgres without dsn", Config{StoreDriver: DriverPostgres, BcryptCost: 10}, "DATABASE_URL"},
		{"unknown driver", Config{StoreDriver: "sqlite", BcryptCost: 10}, "STORE_DRIVER"},
		{"bad cost", Config{StoreDriver: DriverMemory, BcryptCost: 2}, "BCRYPT_COST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
