package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	DatabaseURL  string
	GeminiAPIKey string
	VerseModel   string
	SpeechModel  string
	AutoSpeed    float64 // seconds between auto draws
	AutoSpeedMin float64
	AutoSpeedMax float64
	VerseTimeout int // seconds before giving up on the verse API
}

func Load() Config {
	// A missing .env file is fine; real env vars win either way.
	_ = godotenv.Load()

	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		VerseModel:   getEnv("VERSE_MODEL", "gemini-3-flash-preview"),
		SpeechModel:  getEnv("SPEECH_MODEL", "gemini-2.5-flash-preview-tts"),
		AutoSpeed:    getEnvFloat("AUTO_SPEED", 5.0),
		AutoSpeedMin: 3.0,
		AutoSpeedMax: 12.0,
		VerseTimeout: getEnvInt("VERSE_TIMEOUT", 8),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
