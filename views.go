package accounts

import (
	"net/http"

	"github.com/gofiber/template/django/v3"
)

// NewViewsEngine returns a django engine over the embedded account views.
// Pass it as fiber.Config.Views; views are named like "users/login".
func NewViewsEngine() *django.Engine {
	return django.NewFileSystem(http.FS(GetViewsFS()), ".html")
}
