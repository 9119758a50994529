package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets the browser UI call the API and read the session header.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", SessionHeader, requestIDHeader},
		ExposedHeaders:   []string{SessionHeader, requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
