package accounts

import (
	"maps"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-accounts/middleware/csrf"
)

var TemplateUserKey = "current_user"

// TemplateHelpers returns the functions and constants account views can use.
//
// In templates:
//
//	{% if is_authenticated(current_user) %}
//	{% if is_at_least(current_user, roles.admin) %}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"is_authenticated": isAuthenticated,
		"has_role":         hasRole,
		"is_at_least":      isAtLeast,
		"roles": map[string]string{
			"guest":  string(RoleGuest),
			"member": string(RoleMember),
			"admin":  string(RoleAdmin),
			"owner":  string(RoleOwner),
		},
	}
}

// TemplateHelpersWithUser returns template helpers with user set as current_user.
func TemplateHelpersWithUser(user *User) map[string]any {
	helpers := TemplateHelpers()
	if user != nil {
		helpers[TemplateUserKey] = user
	}
	return helpers
}

// TemplateHelpersWithContext returns the helpers plus the request's current
// user and CSRF values (csrf_token, csrf_field, csrf_meta).
func TemplateHelpersWithContext(c *fiber.Ctx) map[string]any {
	user, _ := CurrentUser(c)
	helpers := TemplateHelpersWithUser(user)
	maps.Copy(helpers, csrf.TemplateHelpers(c, csrf.DefaultContextKey))
	return helpers
}

// viewContext merges data over the request helpers.
func viewContext(c *fiber.Ctx, data fiber.Map) fiber.Map {
	out := fiber.Map(TemplateHelpersWithContext(c))
	maps.Copy(out, data)
	return out
}

func isAuthenticated(user any) bool {
	u, ok := user.(*User)
	return ok && u != nil
}

func hasRole(user any, role string) bool {
	u, ok := user.(*User)
	if !ok || u == nil {
		return false
	}
	return u.Role == UserRole(role)
}

func isAtLeast(user any, minRole string) bool {
	u, ok := user.(*User)
	if !ok || u == nil {
		return false
	}
	return u.Role.IsAtLeast(UserRole(minRole))
}
