package middlewares

import "net/http"

// Middleware es un decorador de http.Handler. Se aplican con chi (r.Use).
type Middleware func(http.Handler) http.Handler
