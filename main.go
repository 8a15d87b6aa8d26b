package main

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/egor/warrantychat/server"
)

func main() {
	// Загружаем переменные окружения из .env файла (если есть)
	_ = godotenv.Load()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	port := env("PORT", "8080")
	publicURL := env("PUBLIC_URL", "http://localhost:"+port)

	// Разрешенные origins для CORS
	var origins []string
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		origins = append(origins, frontendURL)
	}
	if additional := os.Getenv("ADDITIONAL_ALLOWED_ORIGINS"); additional != "" {
		for _, url := range strings.Split(additional, ",") {
			if url = strings.TrimSpace(url); url != "" {
				origins = append(origins, url)
			}
		}
	}

	// Инициализация хаба и хранилища
	store := server.NewStore()
	hub := server.NewHub(logger)
	go hub.Run()

	srv := server.New(store, hub, publicURL, logger)
	r := srv.Router(origins)

	logger.Info().Str("port", port).Msg("сервер гостевого чата запущен")
	if err := r.Run(":" + port); err != nil {
		logger.Fatal().Err(err).Msg("ошибка запуска сервера")
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
