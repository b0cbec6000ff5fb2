package accounts

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DefaultLoginPath is where LoginRequired sends anonymous visitors.
const DefaultLoginPath = DefaultMountPath + "/login"

// RouteAuthenticator keeps the session cookie of a fiber app in sync with
// the Authenticator.
type RouteAuthenticator struct {
	auth                   Authenticator
	cfg                    Config
	cookieDuration         time.Duration
	extendedCookieDuration time.Duration
	loginPath              string
	Logger                 Logger
	ErrorHandler           fiber.ErrorHandler
}

// extendedLogin is implemented by authenticators that issue longer lived
// "remember me" sessions.
type extendedLogin interface {
	LoginExtended(ctx context.Context, identifier, password string) (string, error)
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) *RouteAuthenticator {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	extendedCookieDuration := cookieDuration
	if cfg.GetExtendedTokenDuration() > 0 {
		extendedCookieDuration = time.Duration(cfg.GetExtendedTokenDuration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:                    cfg,
		auth:                   auther,
		Logger:                 defLogger{},
		cookieDuration:         cookieDuration,
		extendedCookieDuration: extendedCookieDuration,
		loginPath:              DefaultLoginPath,
	}

	a.ErrorHandler = a.defaultErrHandler

	return a
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(logger)
	return a
}

// WithLoginPath changes the login page LoginRequired redirects to.
func (a *RouteAuthenticator) WithLoginPath(path string) *RouteAuthenticator {
	if path != "" {
		a.loginPath = path
	}
	return a
}

func (a *RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

func (a *RouteAuthenticator) GetExtendedCookieDuration() time.Duration {
	return a.extendedCookieDuration
}

// Login checks the credentials in payload and sets the session cookie.
func (a *RouteAuthenticator) Login(c *fiber.Ctx, payload LoginPayload) error {
	var (
		token string
		err   error
	)

	duration := a.cookieDuration
	if ext, ok := a.auth.(extendedLogin); ok && payload.GetExtendedSession() {
		duration = a.extendedCookieDuration
		token, err = ext.LoginExtended(c.UserContext(), payload.GetIdentifier(), payload.GetPassword())
	} else {
		token, err = a.auth.Login(c.UserContext(), payload.GetIdentifier(), payload.GetPassword())
	}

	if err != nil {
		a.Logger.Info("login error: %v", err)
		return err
	}

	a.setCookieToken(c, token, duration)
	return nil
}

func (a *RouteAuthenticator) Logout(c *fiber.Ctx) {
	a.cookieDel(c, a.cfg.GetContextKey())
}

// LoadSession resolves the session cookie into the current user. Requests
// with a missing, invalid or expired session continue as anonymous.
func (a *RouteAuthenticator) LoadSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(a.cfg.GetContextKey())
		if raw == "" {
			return c.Next()
		}

		session, err := a.auth.SessionFromToken(raw)
		if err != nil {
			a.Logger.Debug("discarding session cookie: %v", err)
			a.cookieDel(c, a.cfg.GetContextKey())
			return c.Next()
		}

		identity, err := a.auth.IdentityFromSession(c.UserContext(), session)
		if err != nil {
			a.Logger.Debug("session %s has no usable identity: %v", session.GetUserID(), err)
			a.cookieDel(c, a.cfg.GetContextKey())
			return c.Next()
		}

		holder, ok := identity.(interface{ User() *User })
		if !ok || holder.User() == nil {
			return c.Next()
		}

		setCurrentUser(c, holder.User(), session)
		return c.Next()
	}
}

// LoginRequired redirects anonymous requests to the login page, keeping the
// requested path in the next query parameter.
func (a *RouteAuthenticator) LoginRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CurrentUser(c); ok {
			return c.Next()
		}
		return a.redirectToLogin(c)
	}
}

// StaffRequired is LoginRequired plus a 403 for users that are not staff.
func (a *RouteAuthenticator) StaffRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return a.redirectToLogin(c)
		}

		if !user.IsStaff() {
			return a.ErrorHandler(c, accountsError(CodeForbidden).
				With("user_id", user.ID.String()).
				Errorf("staff access required"))
		}

		return c.Next()
	}
}

func (a *RouteAuthenticator) redirectToLogin(c *fiber.Ctx) error {
	a.SetRedirect(c)

	target := a.loginPath + "?next=" + url.QueryEscape(c.OriginalURL())

	statusCode := fiber.StatusSeeOther
	if c.Method() == fiber.MethodGet {
		statusCode = fiber.StatusFound
	}
	return c.Redirect(target, statusCode)
}

// GetRedirect returns the path stored by SetRedirect, or def when there is
// none or it points off site.
func (a *RouteAuthenticator) GetRedirect(c *fiber.Ctx, def string) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	r := c.Cookies(rejectedRoute)
	if r == "" {
		return def
	}
	a.cookieDel(c, rejectedRoute)
	return safeRedirect(r, def)
}

// GetRedirectOrDefault is GetRedirect falling back to the configured
// rejected route default.
func (a *RouteAuthenticator) GetRedirectOrDefault(c *fiber.Ctx) string {
	def := a.cfg.GetRejectedRouteDefault()
	if def == "" {
		def = "/"
	}
	return a.GetRedirect(c, def)
}

func (a *RouteAuthenticator) SetRedirect(c *fiber.Ctx) {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	a.Logger.Debug("setting redirect cookie %s=%s", rejectedRoute, c.OriginalURL())

	c.Cookie(&fiber.Cookie{
		Name:     rejectedRoute,
		Value:    c.OriginalURL(),
		Path:     "/",
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *RouteAuthenticator) setCookieToken(c *fiber.Ctx, val string, duration time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Path:     "/",
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *RouteAuthenticator) cookieDel(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c *fiber.Ctx, err error) error {
	return renderError(c, a.Logger, err)
}

// renderError renders the error page matching the status err maps to.
func renderError(c *fiber.Ctx, logger Logger, err error) error {
	status := HTTPStatus(err)

	view := "errors/500"
	message := "An unexpected server error occurred"
	switch status {
	case fiber.StatusForbidden:
		view, message = "errors/403", "You do not have permission to view this page"
	case fiber.StatusNotFound:
		view, message = "errors/404", "Page not found"
	}

	if status >= fiber.StatusInternalServerError {
		normalizeLogger(logger).Error("%s %s: %v", c.Method(), c.Path(), err)
	} else {
		normalizeLogger(logger).Info("%s %s: %v", c.Method(), c.Path(), err)
	}

	if renderErr := c.Status(status).Render(view, fiber.Map{
		"status":  status,
		"message": message,
		"code":    ErrorCode(err),
	}); renderErr != nil {
		return c.Status(status).SendString(message)
	}
	return nil
}

// safeRedirect returns next when it is a local absolute path, fallback
// otherwise.
func safeRedirect(next, fallback string) string {
	if next == "" ||
		!strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") ||
		strings.Contains(next, `\`) {
		return fallback
	}
	return next
}
