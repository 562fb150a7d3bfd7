package app

import (
	"testing"
	"time"
)

func TestLoadConfigReadsEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RUN_WORKER", "false")
	t.Setenv("WORKER_STALE_AFTER", "120")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := LoadConfig()
	if cfg.Port != "9090" {
		t.Fatalf("port: want=9090 got=%s", cfg.Port)
	}
	if cfg.RunWorker {
		t.Fatalf("RunWorker: want=false got=true")
	}
	if cfg.Worker.StaleAfter != 2*time.Minute {
		t.Fatalf("stale after: want=%v got=%v", 2*time.Minute, cfg.Worker.StaleAfter)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins: got=%v", cfg.CORSAllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Environment:  "development",
			RunServer:    true,
			RunWorker:    true,
			JWTSecretKey: "s",
		}
	}

	cfg := base()
	cfg.Gemini.APIKey = "k"
	cfg.JWTSecretKey = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dev config: %v", err)
	}
	if cfg.JWTSecretKey != DevJWTSecret {
		t.Fatalf("jwt secret: want=%s got=%s", DevJWTSecret, cfg.JWTSecretKey)
	}

	cfg = base()
	cfg.Gemini.APIKey = "k"
	cfg.Environment = "production"
	cfg.JWTSecretKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("production without secret: want error")
	}

	cfg = base()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("missing api key: want error")
	}

	cfg = base()
	cfg.Gemini.APIKey = "k"
	cfg.RunServer, cfg.RunWorker = false, false
	if err := cfg.Validate(); err == nil {
		t.Fatalf("no roles: want error")
	}
}
