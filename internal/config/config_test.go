package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTO_SPEED", "")
	t.Setenv("VERSE_TIMEOUT", "")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, "")
	}
	if cfg.AutoSpeed != 5.0 {
		t.Errorf("AutoSpeed = %v, want %v", cfg.AutoSpeed, 5.0)
	}
	if cfg.VerseTimeout != 8 {
		t.Errorf("VerseTimeout = %d, want %d", cfg.VerseTimeout, 8)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("DATABASE_URL", "postgres://localhost/lotolive")
	t.Setenv("AUTO_SPEED", "7.5")
	t.Setenv("VERSE_MODEL", "gemini-test")

	cfg := Load()

	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want %q", cfg.Port, "3000")
	}
	if cfg.DatabaseURL != "postgres://localhost/lotolive" {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, "postgres://localhost/lotolive")
	}
	if cfg.AutoSpeed != 7.5 {
		t.Errorf("AutoSpeed = %v, want %v", cfg.AutoSpeed, 7.5)
	}
	if cfg.VerseModel != "gemini-test" {
		t.Errorf("VerseModel = %q, want %q", cfg.VerseModel, "gemini-test")
	}
}

func TestLoad_InvalidAutoSpeed(t *testing.T) {
	t.Setenv("AUTO_SPEED", "abc")

	cfg := Load()

	if cfg.AutoSpeed != 5.0 {
		t.Errorf("AutoSpeed = %v, want %v (fallback)", cfg.AutoSpeed, 5.0)
	}
}

func TestLoad_SpeedBounds(t *testing.T) {
	cfg := Load()

	if cfg.AutoSpeedMin != 3.0 || cfg.AutoSpeedMax != 12.0 {
		t.Errorf("speed bounds = [%v, %v], want [3, 12]", cfg.AutoSpeedMin, cfg.AutoSpeedMax)
	}
}
