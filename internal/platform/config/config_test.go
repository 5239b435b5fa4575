package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("APP_ENV", "")

	cfg, err := Load("predictor", "127.0.0.1:5000")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "predictor" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.HTTP.Addr != "127.0.0.1:5000" {
		t.Fatalf("expected default addr, got %q", cfg.HTTP.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected info level, got %q", cfg.LogLevel)
	}
	if cfg.IsProduction() {
		t.Fatal("expected non-production by default")
	}
}

func TestLoad_RequiresName(t *testing.T) {
	t.Setenv("SERVICE_NAME", "")
	if _, err := Load("", ""); err == nil {
		t.Fatal("expected error without a service name")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "radar-tab-1")
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("APP_ENV", "Production")

	cfg, err := Load("radar", ":8090")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "radar-tab-1" || cfg.HTTP.Addr != ":9999" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production")
	}
}
