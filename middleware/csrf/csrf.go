// Package csrf wires fiber's CSRF middleware for server rendered forms: the
// token is read from a form field or a header and exposed to templates.
package csrf

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fibercsrf "github.com/gofiber/fiber/v2/middleware/csrf"
)

var (
	ErrTokenMismatch = errors.New("CSRF token mismatch")
	ErrTokenMissing  = errors.New("CSRF token missing")
)

// DefaultContextKey is the default key for storing CSRF tokens in context
const DefaultContextKey = "csrf_token"

// DefaultFormFieldName is the default name for the CSRF token form field
const DefaultFormFieldName = "_token"

// DefaultHeaderName is the default header name for CSRF tokens
const DefaultHeaderName = "X-CSRF-Token"

// DefaultCookieName is the cookie holding the token for the double submit
// check.
const DefaultCookieName = "csrf_"

// Config defines the configuration for CSRF middleware
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(*fiber.Ctx) bool

	// ContextKey defines the key for storing the token in context
	ContextKey string

	// FormFieldName defines the name of the form field containing the token
	FormFieldName string

	// HeaderName defines the header name for the token
	HeaderName string

	// TokenLookup defines where to look for the token
	// Format: "form:_token,header:X-CSRF-Token"
	TokenLookup string

	CookieName   string
	CookieSecure bool

	// Expiration defines how long tokens are valid
	Expiration time.Duration

	// Storage keeps issued tokens, in memory when nil.
	Storage fiber.Storage

	// ErrorHandler defines the error handler
	ErrorHandler fiber.ErrorHandler
}

// TokenExtractor defines a function to extract token from request
type TokenExtractor func(*fiber.Ctx) string

// New creates a new CSRF middleware
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)
	extractors := getExtractors(cfg.TokenLookup, cfg.FormFieldName, cfg.HeaderName)

	protect := fibercsrf.New(fibercsrf.Config{
		Next:           cfg.Skip,
		CookieName:     cfg.CookieName,
		CookieSameSite: "Lax",
		CookieSecure:   cfg.CookieSecure,
		CookieHTTPOnly: true,
		Expiration:     cfg.Expiration,
		Storage:        cfg.Storage,
		ContextKey:     cfg.ContextKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, fibercsrf.ErrTokenNotFound) {
				return cfg.ErrorHandler(c, ErrTokenMissing)
			}
			return cfg.ErrorHandler(c, ErrTokenMismatch)
		},
		Extractor: func(c *fiber.Ctx) (string, error) {
			for _, extract := range extractors {
				if token := extract(c); token != "" {
					return token, nil
				}
			}
			return "", fibercsrf.ErrTokenNotFound
		},
	})

	return func(c *fiber.Ctx) error {
		c.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)
		c.Locals(cfg.ContextKey+"_header", cfg.HeaderName)
		return protect(c)
	}
}

// getExtractors returns token extractors based on configuration
func getExtractors(tokenLookup, formField, header string) []TokenExtractor {
	var extractors []TokenExtractor

	if tokenLookup == "" {
		return []TokenExtractor{
			extractorFromForm(formField),
			extractorFromHeader(header),
		}
	}

	for _, part := range strings.Split(tokenLookup, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "form:"):
			extractors = append(extractors, extractorFromForm(strings.TrimPrefix(part, "form:")))
		case strings.HasPrefix(part, "header:"):
			extractors = append(extractors, extractorFromHeader(strings.TrimPrefix(part, "header:")))
		}
	}

	return extractors
}

func extractorFromForm(fieldName string) TokenExtractor {
	return func(c *fiber.Ctx) string {
		return c.FormValue(fieldName)
	}
}

func extractorFromHeader(headerName string) TokenExtractor {
	return func(c *fiber.Ctx) string {
		return c.Get(headerName)
	}
}

func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}

	if cfg.Expiration <= 0 {
		cfg.Expiration = time.Hour
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	return cfg
}

func defaultErrorHandler(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusForbidden).SendString("Forbidden: " + err.Error())
}

// TemplateHelpers returns the values forms need to submit the token:
// csrf_token, csrf_field (a hidden input), csrf_meta and csrf_header_name.
func TemplateHelpers(c *fiber.Ctx, tokenKey string) map[string]any {
	if tokenKey == "" {
		tokenKey = DefaultContextKey
	}

	token, _ := c.Locals(tokenKey).(string)

	fieldName := DefaultFormFieldName
	if val, ok := c.Locals(tokenKey + "_field").(string); ok && val != "" {
		fieldName = val
	}

	headerName := DefaultHeaderName
	if val, ok := c.Locals(tokenKey + "_header").(string); ok && val != "" {
		headerName = val
	}

	return map[string]any{
		"csrf_token":       token,
		"csrf_field":       `<input type="hidden" name="` + fieldName + `" value="` + token + `">`,
		"csrf_meta":        `<meta name="csrf-token" content="` + token + `">`,
		"csrf_header_name": headerName,
	}
}
