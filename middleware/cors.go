package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig controls which admin UI origins may call the API
type CORSConfig struct {
	AllowedOrigins   []string // "*" or empty allows any origin without credentials
	AllowCredentials bool
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	MaxAge           int // seconds a preflight may be cached
}

// DefaultCORSConfig returns the admin UI defaults for the given origins
func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete, fiber.MethodOptions},
		AllowedHeaders:   []string{fiber.HeaderOrigin, fiber.HeaderContentType, fiber.HeaderAccept, fiber.HeaderAuthorization},
		// Content-Disposition carries the file name of CSV and EML downloads
		ExposedHeaders: []string{fiber.HeaderContentLength, fiber.HeaderContentDisposition},
		MaxAge:         3600,
	}
}

type corsPolicy struct {
	any         bool
	origins     map[string]bool
	credentials bool
	methods     string
	headers     string
	exposed     string
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) corsPolicy {
	p := corsPolicy{
		any:         len(cfg.AllowedOrigins) == 0,
		origins:     make(map[string]bool, len(cfg.AllowedOrigins)),
		credentials: cfg.AllowCredentials,
		methods:     strings.Join(cfg.AllowedMethods, ","),
		headers:     strings.Join(cfg.AllowedHeaders, ","),
		exposed:     strings.Join(cfg.ExposedHeaders, ","),
		maxAge:      strconv.Itoa(cfg.MaxAge),
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			p.any = true
		}
		p.origins[strings.TrimRight(origin, "/")] = true
	}
	return p
}

// CORS answers preflight requests and sets the allow headers on every response
func CORS(cfg CORSConfig) fiber.Handler {
	policy := newCORSPolicy(cfg)

	return func(c *fiber.Ctx) error {
		switch origin := c.Get(fiber.HeaderOrigin); {
		case policy.any:
			c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		case policy.origins[origin]:
			c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
			c.Vary(fiber.HeaderOrigin)
			if policy.credentials {
				c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
			}
		}
		c.Set(fiber.HeaderAccessControlExposeHeaders, policy.exposed)

		if c.Method() != fiber.MethodOptions {
			return c.Next()
		}
		c.Set(fiber.HeaderAccessControlAllowMethods, policy.methods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, policy.headers)
		c.Set(fiber.HeaderAccessControlMaxAge, policy.maxAge)
		return c.SendStatus(fiber.StatusNoContent)
	}
}
