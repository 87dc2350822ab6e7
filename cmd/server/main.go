package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"contract-risk-review/backend/internal/ai"
	"contract-risk-review/backend/internal/api"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("no .env file loaded")
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := api.Config{
		DBPath:      os.Getenv("DB_PATH"),
		CatalogPath: os.Getenv("RISK_CATALOG_PATH"),
		PromptPath:  os.Getenv("PROMPT_PATH"),
		DisableAI:   envBool("DISABLE_AI"),
		Workers:     envInt("ANALYZER_WORKERS"),
		AIConfig: ai.Config{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       os.Getenv("OPENAI_MODEL"),
			BaseURL:     os.Getenv("OPENAI_BASE_URL"),
			Temperature: envFloat("OPENAI_TEMPERATURE"),
			MaxTokens:   envInt("OPENAI_MAX_TOKENS"),
			Timeout:     envDuration("OPENAI_TIMEOUT"),
		},
	}

	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	// A fallback model shares credentials with the primary and takes over
	// only when the primary call fails.
	if fallbackModel := strings.TrimSpace(os.Getenv("OPENAI_FALLBACK_MODEL")); fallbackModel != "" {
		cfg.FallbackAI = cfg.AIConfig
		cfg.FallbackAI.Model = fallbackModel
	}

	srv, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("initialize server: %v", err)
	}

	router, err := srv.Router()
	if err != nil {
		logrus.Fatalf("configure routes: %v", err)
	}

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}
	logrus.Infof("contract risk review API listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		logrus.Fatalf("server stopped: %v", err)
	}
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}

func envInt(key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return 0
	}
	return v
}

func envFloat(key string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return 0
	}
	return v
}

func envDuration(key string) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return 0
	}
	return v
}
