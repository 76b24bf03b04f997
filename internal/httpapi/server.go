package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"psychro-dash/internal/config"
)

func NewServer(cfg config.Config, mux *http.ServeMux, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           Handler(cfg, mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler wraps mux with request logging and, when origins are configured, CORS.
func Handler(cfg config.Config, mux http.Handler, logger *slog.Logger) http.Handler {
	var h http.Handler = mux
	if len(cfg.CORSAllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: false,
		}).Handler(h)
	}
	return requestLogger(logger, h)
}
