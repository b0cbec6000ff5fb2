package accounts

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-accounts/paginator"
)

// DefaultAdminPerPage is the page size of the admin user list.
const DefaultAdminPerPage = 25

// RegisterAdminRoutes mounts the staff only user list and permission form.
func RegisterAdminRoutes(router fiber.Router, controller *AccountController) {
	staff := controller.Auther.StaffRequired()

	router.Get(controller.Routes.AdminUsers, staff, controller.AdminUsers).Name("admin-users.get")
	router.Post(controller.Routes.AdminUser, staff, controller.AdminUserUpdate).Name("admin-user.post")
}

// AdminUsers lists users ordered by email, one page at a time. The page
// query parameter never fails: junk and out of range values are clamped.
func (a *AccountController) AdminUsers(c *fiber.Ctx) error {
	pager, err := paginator.New[*User](NewUserPageSource(a.Repo.Users()), a.AdminPerPage)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	page, err := pager.Page(c.UserContext(), paginator.StringPage(c.Query("page", "1")), paginator.DefaultPerSide)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	if c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
		return c.JSON(page)
	}

	return a.render(c, fiber.StatusOK, a.Views.AdminUsers, fiber.Map{
		"page":  page,
		"users": page.Items,
		"roles": GetAllRoles(),
		"path":  a.routePath(a.Routes.AdminUsers),
	})
}

// AdminUserPayload is the permission form of a single user.
type AdminUserPayload struct {
	Active   string `form:"is_active" json:"is_active"`
	Verified string `form:"is_verified" json:"is_verified"`
	Role     string `form:"user_role" json:"user_role"`
	Page     string `form:"page" json:"page"`
}

// AdminUserUpdate stores the active, verified and role fields of a user.
// Only owners may change an owner account or hand out the owner role. The
// fields are stored in one transaction.
func (a *AccountController) AdminUserUpdate(c *fiber.Ctx) error {
	actor, _ := CurrentUser(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return a.ErrorHandler(c, accountsError(CodeNotFound).
			With("id", c.Params("id")).
			Wrap(ErrNotFound))
	}

	payload := new(AdminUserPayload)
	if err := c.BodyParser(payload); err != nil {
		return a.ErrorHandler(c, accountsError(CodeValidationFailed).Wrapf(err, "failed to parse form"))
	}

	users := a.Repo.Users()
	user, err := users.GetByID(c.UserContext(), id)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	role := user.Role
	if payload.Role != "" {
		parsed, ok := ParseRole(payload.Role)
		if !ok {
			return a.ErrorHandler(c, accountsError(CodeValidationFailed).
				With("role", payload.Role).
				Errorf("unknown role %q", payload.Role))
		}
		role = parsed
	}

	active := formBool(payload.Active)
	verified := formBool(payload.Verified)
	changed := active != user.Active || verified != user.Verified || role != user.Role

	if changed && (user.Role == RoleOwner || role == RoleOwner) && !actor.IsSuperuser() {
		return a.ErrorHandler(c, accountsError(CodeForbidden).
			With("user_id", user.ID.String(), "role", role).
			Errorf("only owners may change an owner account or grant the owner role"))
	}

	err = a.Repo.RunInTx(c.UserContext(), nil, func(ctx context.Context, tx bun.Tx) error {
		if active != user.Active {
			if err := users.SetActiveTx(ctx, tx, user.ID, active); err != nil {
				return err
			}
		}

		if verified != user.Verified {
			if err := users.SetVerifiedTx(ctx, tx, user.ID, verified); err != nil {
				return err
			}
		}

		if role != user.Role {
			return users.SetRoleTx(ctx, tx, user.ID, role)
		}
		return nil
	})
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	recordActivity(c.UserContext(), a.Activity, a.Logger, ActivityEvent{
		EventType: ActivityEventUserPermissionsUpdate,
		Actor:     userActor(actor),
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"is_active":   active,
			"is_verified": verified,
			"from_role":   string(user.Role),
			"to_role":     string(role),
		},
	})

	redirect := a.routePath(a.Routes.AdminUsers)
	if n, err := strconv.Atoi(payload.Page); err == nil && n > 1 {
		redirect += "?page=" + strconv.Itoa(n)
	}

	return c.Redirect(redirect, fiber.StatusSeeOther)
}

// formBool reads an HTML checkbox value.
func formBool(v string) bool {
	switch v {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
