// Package middleware provides the HTTP middleware for the admin API.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket rate limiting with idle-client sweep
//   - GlobalRateLimit: One shared bucket for all callers
//   - RequestID: X-Request-ID propagation (UUID or req_ ULID)
//
// Example Usage:
//
//	router.Use(middleware.RequestID())
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
