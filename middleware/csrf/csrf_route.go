package csrf

import "github.com/gofiber/fiber/v2"

// RouteConfig configures the token endpoint registered by RegisterRoutes.
// Zero fields take the defaults.
type RouteConfig struct {
	Path       string
	ContextKey string
	RouteName  string
}

// TokenResponse is the body served by the token endpoint.
type TokenResponse struct {
	Token      string `json:"token"`
	FieldName  string `json:"field_name"`
	HeaderName string `json:"header_name"`
}

func (r RouteConfig) withDefaults() RouteConfig {
	if r.Path == "" {
		r.Path = "/csrf"
	}
	if r.ContextKey == "" {
		r.ContextKey = DefaultContextKey
	}
	if r.RouteName == "" {
		r.RouteName = "accounts.csrf.get"
	}
	return r
}

// RegisterRoutes serves the token New stored for the request, for clients
// that submit forms or set the header from javascript. Requests that did
// not pass through New get a 401.
func RegisterRoutes(app fiber.Router, cfg ...RouteConfig) {
	conf := RouteConfig{}
	if len(cfg) > 0 {
		conf = cfg[0]
	}
	conf = conf.withDefaults()

	app.Get(conf.Path, func(c *fiber.Ctx) error {
		helpers := TemplateHelpers(c, conf.ContextKey)

		resp := TokenResponse{}
		resp.Token, _ = helpers["csrf_token"].(string)
		resp.HeaderName, _ = helpers["csrf_header_name"].(string)
		if resp.Token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": ErrTokenMissing.Error()})
		}

		resp.FieldName, _ = c.Locals(conf.ContextKey + "_field").(string)
		if resp.FieldName == "" {
			resp.FieldName = DefaultFormFieldName
		}

		c.Set(fiber.HeaderCacheControl, "no-store, max-age=0")
		c.Set(fiber.HeaderPragma, "no-cache")
		c.Set(fiber.HeaderExpires, "0")
		return c.JSON(resp)
	}).Name(conf.RouteName)
}
