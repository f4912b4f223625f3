package database

import "testing"

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{
		Host:     "db.internal",
		Port:     5433,
		User:     "climate",
		Password: "secret",
		Database: "climate",
		SSLMode:  "disable",
	}

	want := "host=db.internal port=5433 user=climate password=secret dbname=climate sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
