package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/user/movie-explorer/internal/config"
)

// WrapHTTP 在 gin 引擎外层套上 CORS 和按 IP 限流
func WrapHTTP(next http.Handler, cfg config.ServerConfig) http.Handler {
	h := next
	if cfg.RateLimitRPM > 0 {
		h = httprate.LimitByIP(cfg.RateLimitRPM, time.Minute)(h)
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})(h)
}
