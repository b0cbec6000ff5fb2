package accounts

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

// RegisterRoutes mounts the account pages on router, usually a group at
// DefaultMountPath. Admin pages are registered by RegisterAdminRoutes.
func RegisterRoutes(router fiber.Router, opts ...AccountControllerOption) *AccountController {
	controller := NewAccountController(opts...)
	auther := controller.Auther

	router.Get(controller.Routes.Signup, controller.SignupShow).Name("signup.get")
	router.Post(controller.Routes.Signup, controller.SignupCreate).Name("signup.post")

	router.Get(controller.Routes.Login, controller.LoginShow).Name("login.get")
	router.Post(controller.Routes.Login, controller.LoginPost).Name("login.post")
	router.Get(controller.Routes.Logout, controller.LogOut).Name("logout.get")

	router.Get(controller.Routes.Verification, auther.LoginRequired(), controller.VerificationShow).
		Name("verification.get")
	router.Post(controller.Routes.Verification, auther.LoginRequired(), controller.VerificationResend).
		Name("verification.post")
	router.Get(controller.Routes.Verify, controller.Verify).Name("verify.get")

	router.Get(controller.Routes.PasswordReset, controller.PasswordResetShow).Name("pwd-reset.get")
	router.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).Name("pwd-reset.post")
	router.Get(controller.Routes.PasswordResetDone, controller.PasswordResetDone).Name("pwd-reset-done.get")
	router.Get(controller.Routes.PasswordResetConfirm, controller.PasswordResetConfirmShow).
		Name("pwd-reset-confirm.get")
	router.Post(controller.Routes.PasswordResetConfirm, controller.PasswordResetConfirmPost).
		Name("pwd-reset-confirm.post")
	router.Get(controller.Routes.PasswordResetComplete, controller.PasswordResetComplete).
		Name("pwd-reset-complete.get")

	RegisterAdminRoutes(router, controller)

	return controller
}

type AccountControllerRoutes struct {
	Signup                string
	Login                 string
	Logout                string
	Verification          string
	Verify                string
	PasswordReset         string
	PasswordResetDone     string
	PasswordResetConfirm  string
	PasswordResetComplete string
	AdminUsers            string
	AdminUser             string
}

type AccountControllerViews struct {
	Signup                string
	Login                 string
	Verification          string
	PasswordReset         string
	PasswordResetDone     string
	PasswordResetConfirm  string
	PasswordResetComplete string
	AdminUsers            string
}

type AccountController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Auther       *RouteAuthenticator
	Config       Config
	Tokens       LinkTokens
	Links        *LinkBuilder
	Notifier     Notifier
	Throttle     Throttle
	Activity     ActivitySink
	AdminPerPage int
	Routes       *AccountControllerRoutes
	Views        *AccountControllerViews
	ErrorHandler fiber.ErrorHandler

	register         *RegisterUserHandler
	sendVerification *SendVerificationHandler
	verifyAccount    *VerifyAccountHandler
	initReset        *InitializePasswordResetHandler
	confirmReset     *ConfirmPasswordResetHandler
	finalizeReset    *FinalizePasswordResetHandler
}

type AccountControllerOption func(*AccountController) *AccountController

func WithControllerRepository(repo RepositoryManager) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuthenticator(auther *RouteAuthenticator) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Auther = auther
		return c
	}
}

// WithControllerConfig sets the config used for the login redirect and the
// absolute links in emails.
func WithControllerConfig(cfg Config) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Config = cfg
		return c
	}
}

func WithControllerLinkTokens(tokens LinkTokens) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Tokens = tokens
		return c
	}
}

// WithControllerLinkBuilder sets the builder for email links. Its mount path
// must match the router RegisterRoutes is given.
func WithControllerLinkBuilder(links *LinkBuilder) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Links = links
		return c
	}
}

func WithControllerNotifier(notifier Notifier) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Notifier = notifier
		return c
	}
}

func WithControllerThrottle(throttle Throttle) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Throttle = throttle
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Activity = sink
		return c
	}
}

func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

// WithControllerDebug dumps form payloads and command responses.
func WithControllerDebug(debug bool) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Debug = debug
		return c
	}
}

func WithAdminPerPage(perPage int) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if perPage > 0 {
			c.AdminPerPage = perPage
		}
		return c
	}
}

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger:       defLogger{},
		Activity:     noopActivitySink{},
		Throttle:     unlimited{},
		AdminPerPage: DefaultAdminPerPage,
		Routes: &AccountControllerRoutes{
			Signup:                "/signup",
			Login:                 "/login",
			Logout:                "/logout",
			Verification:          "/verification",
			Verify:                "/verify/:uidb64/:token",
			PasswordReset:         "/password-reset",
			PasswordResetDone:     "/password-reset/done",
			PasswordResetConfirm:  "/password-reset/confirm/:uidb64/:token",
			PasswordResetComplete: "/password-reset/complete",
			AdminUsers:            "/admin/users",
			AdminUser:             "/admin/users/:id",
		},
		Views: &AccountControllerViews{
			Signup:                "users/signup",
			Login:                 "users/login",
			Verification:          "users/verification",
			PasswordReset:         "users/password_reset",
			PasswordResetDone:     "users/password_reset_done",
			PasswordResetConfirm:  "users/password_reset_confirm",
			PasswordResetComplete: "users/password_reset_complete",
			AdminUsers:            "users/admin_users",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in account controller...")
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in account controller...")
	}

	if c.Config == nil {
		panic("Missing Config in account controller...")
	}

	if c.Tokens == nil {
		c.Tokens = NewStateTokenGeneratorFromConfig(c.Config)
	}

	if c.Notifier == nil {
		panic("Missing Notifier in account controller...")
	}

	if c.Links == nil {
		c.Links = NewLinkBuilder(c.Config.GetSiteURL())
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.Auther.ErrorHandler
	}

	c.register = NewRegisterUserHandler(c.Repo).
		WithActivitySink(c.Activity).
		WithLogger(c.Logger)
	c.sendVerification = NewSendVerificationHandler(c.Repo, c.Tokens, c.Links, c.Notifier).
		WithThrottle(c.Throttle).
		WithActivitySink(c.Activity).
		WithLogger(c.Logger)
	c.verifyAccount = NewVerifyAccountHandler(c.Repo, c.Tokens).
		WithActivitySink(c.Activity).
		WithLogger(c.Logger)
	c.initReset = NewInitializePasswordResetHandler(c.Repo, c.Tokens, c.Links, c.Notifier).
		WithActivitySink(c.Activity).
		WithLogger(c.Logger)
	c.confirmReset = NewConfirmPasswordResetHandler(c.Repo, c.Tokens).
		WithLogger(c.Logger)
	c.finalizeReset = NewFinalizePasswordResetHandler(c.Repo, c.Tokens).
		WithActivitySink(c.Activity).
		WithLogger(c.Logger)

	return c
}

func (a *AccountController) render(c *fiber.Ctx, status int, view string, data fiber.Map) error {
	return c.Status(status).Render(view, viewContext(c, data))
}

func (a *AccountController) debug(label string, v any) {
	if !a.Debug {
		return
	}
	fmt.Println("======= " + label + " ======")
	fmt.Println(print.MaybePrettyJSON(v))
	fmt.Println("=========================")
}

func (a *AccountController) loginRedirect() string {
	if r := a.Config.GetLoginRedirect(); r != "" {
		return r
	}
	return "/"
}

// SignupPayload is the signup form
type SignupPayload struct {
	FullName        string `form:"full_name" json:"full_name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r SignupPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.RuneLength(1, MaxFullNameLength)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordLength)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AccountController) SignupShow(c *fiber.Ctx) error {
	return a.render(c, fiber.StatusOK, a.Views.Signup, fiber.Map{
		"validation": map[string]string{},
		"record":     SignupPayload{},
	})
}

func (a *AccountController) SignupCreate(c *fiber.Ctx) error {
	payload := new(SignupPayload)
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("signup parse payload: %v", err)
		return a.render(c, fiber.StatusBadRequest, a.Views.Signup, fiber.Map{
			"validation": map[string]string{"form": "Failed to parse form"},
			"record":     payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return a.render(c, fiber.StatusBadRequest, a.Views.Signup, fiber.Map{
			"validation": FormatValidationErrorToMap(err),
			"record":     payload,
		})
	}

	var user *User
	err := a.register.Execute(c.UserContext(), RegisterUserMessage{
		FullName:   payload.FullName,
		Email:      payload.Email,
		Password:   payload.Password,
		OnResponse: func(u *User) { user = u },
	})
	if err != nil {
		validationErrs := FormatValidationErrorToMap(err)
		if ErrorCode(err) == CodeEmailTaken {
			validationErrs["email"] = "A user with that email already exists"
		}
		if len(validationErrs) == 0 {
			return a.ErrorHandler(c, err)
		}
		return a.render(c, HTTPStatus(err), a.Views.Signup, fiber.Map{
			"validation": validationErrs,
			"record":     payload,
		})
	}

	a.debug("ACCOUNT SIGNUP", user)

	if err := a.Auther.Login(c, LoginRequest{Email: payload.Email, Password: payload.Password}); err != nil {
		a.Logger.Error("signup login: %v", err)
	}

	if err := a.sendVerification.Execute(c.UserContext(), SendVerificationMessage{UserID: user.ID}); err != nil {
		a.Logger.Error("signup verification mail: %v", err)
	}

	return c.Redirect("/", fiber.StatusSeeOther)
}

// LoginRequest payload
type LoginRequest struct {
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
	Next       string `form:"next" json:"next"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Email
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession reports whether remember me was checked
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountController) LoginShow(c *fiber.Ctx) error {
	if _, ok := CurrentUser(c); ok {
		return c.Redirect(safeRedirect(c.Query("next"), a.loginRedirect()), fiber.StatusFound)
	}

	return a.render(c, fiber.StatusOK, a.Views.Login, fiber.Map{
		"validation": map[string]string{},
		"record":     LoginRequest{Next: c.Query("next")},
	})
}

func (a *AccountController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return a.render(c, fiber.StatusBadRequest, a.Views.Login, fiber.Map{
			"validation": map[string]string{"form": "Failed to parse form"},
			"record":     payload,
		})
	}

	if payload.Next == "" {
		payload.Next = c.Query("next")
	}

	if err := payload.Validate(); err != nil {
		return a.render(c, fiber.StatusBadRequest, a.Views.Login, fiber.Map{
			"validation": FormatValidationErrorToMap(err),
			"record":     LoginRequest{Email: payload.Email, Next: payload.Next},
		})
	}

	if err := a.Auther.Login(c, payload); err != nil {
		status := HTTPStatus(err)
		if status >= fiber.StatusInternalServerError {
			return a.ErrorHandler(c, err)
		}
		return a.render(c, status, a.Views.Login, fiber.Map{
			"validation": map[string]string{"authentication": loginErrorMessage(err)},
			"record":     LoginRequest{Email: payload.Email, Next: payload.Next},
		})
	}

	redirect := safeRedirect(payload.Next, "")
	if redirect == "" {
		redirect = a.Auther.GetRedirect(c, a.loginRedirect())
	}

	return c.Redirect(redirect, fiber.StatusSeeOther)
}

func loginErrorMessage(err error) string {
	switch ErrorCode(err) {
	case CodeTooManyLoginAttempts:
		return "Too many failed login attempts, try again later"
	case CodeUserInactive:
		return "This account is inactive"
	}
	return "Please enter a correct email and password"
}

func (a *AccountController) LogOut(c *fiber.Ctx) error {
	if user, ok := CurrentUser(c); ok {
		recordActivity(c.UserContext(), a.Activity, a.Logger, ActivityEvent{
			EventType: ActivityEventLogout,
			Actor:     userActor(user),
			UserID:    user.ID.String(),
		})
	}

	a.Auther.Logout(c)
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (a *AccountController) VerificationShow(c *fiber.Ctx) error {
	return a.render(c, fiber.StatusOK, a.Views.Verification, fiber.Map{
		"sent": false,
	})
}

func (a *AccountController) VerificationResend(c *fiber.Ctx) error {
	user, _ := CurrentUser(c)

	var resp *SendVerificationResponse
	err := a.sendVerification.Execute(c.UserContext(), SendVerificationMessage{
		UserID:     user.ID,
		OnResponse: func(r *SendVerificationResponse) { resp = r },
	})
	if err != nil {
		if ErrorCode(err) != CodeResendThrottled {
			return a.ErrorHandler(c, err)
		}
		return a.render(c, fiber.StatusTooManyRequests, a.Views.Verification, fiber.Map{
			"sent":      false,
			"throttled": true,
		})
	}

	a.debug("ACCOUNT VERIFICATION", resp)

	return a.render(c, fiber.StatusOK, a.Views.Verification, fiber.Map{
		"sent":             resp != nil && resp.Sent,
		"already_verified": resp != nil && resp.AlreadyVerified,
	})
}

func (a *AccountController) Verify(c *fiber.Ctx) error {
	err := a.verifyAccount.Execute(c.UserContext(), VerifyAccountMessage{
		UIDB64: c.Params("uidb64"),
		Token:  c.Params("token"),
	})
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.Redirect(a.loginRedirect(), fiber.StatusFound)
}

// PasswordResetRequestPayload holds values for password reset
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AccountController) PasswordResetShow(c *fiber.Ctx) error {
	return a.render(c, fiber.StatusOK, a.Views.PasswordReset, fiber.Map{
		"validation": map[string]string{},
		"record":     PasswordResetRequestPayload{},
	})
}

func (a *AccountController) PasswordResetPost(c *fiber.Ctx) error {
	payload := new(PasswordResetRequestPayload)
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("password reset parse payload: %v", err)
		return a.render(c, fiber.StatusBadRequest, a.Views.PasswordReset, fiber.Map{
			"validation": map[string]string{"form": "Failed to parse form"},
			"record":     payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return a.render(c, fiber.StatusBadRequest, a.Views.PasswordReset, fiber.Map{
			"validation": FormatValidationErrorToMap(err),
			"record":     payload,
		})
	}

	var res *InitializePasswordResetResponse
	err := a.initReset.Execute(c.UserContext(), InitializePasswordResetMessage{
		Email:      payload.Email,
		OnResponse: func(r *InitializePasswordResetResponse) { res = r },
	})
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	a.debug("PASSWORD RESET", res)

	return c.Redirect(a.routePath(a.Routes.PasswordResetDone), fiber.StatusSeeOther)
}

func (a *AccountController) PasswordResetDone(c *fiber.Ctx) error {
	return a.render(c, fiber.StatusOK, a.Views.PasswordResetDone, fiber.Map{})
}

// PasswordResetVerifyPayload holds the new password
type PasswordResetVerifyPayload struct {
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetVerifyPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(MinPasswordLength, MaxPasswordLength),
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AccountController) PasswordResetConfirmShow(c *fiber.Ctx) error {
	var resp *ConfirmPasswordResetResponse
	err := a.confirmReset.Execute(c.UserContext(), ConfirmPasswordResetMessage{
		UIDB64:     c.Params("uidb64"),
		Token:      c.Params("token"),
		OnResponse: func(r *ConfirmPasswordResetResponse) { resp = r },
	})
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return a.render(c, fiber.StatusOK, a.Views.PasswordResetConfirm, fiber.Map{
		"validlink":  resp != nil && resp.Valid,
		"validation": map[string]string{},
	})
}

func (a *AccountController) PasswordResetConfirmPost(c *fiber.Ctx) error {
	payload := new(PasswordResetVerifyPayload)
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("password reset confirm parse payload: %v", err)
		return a.render(c, fiber.StatusBadRequest, a.Views.PasswordResetConfirm, fiber.Map{
			"validlink":  true,
			"validation": map[string]string{"form": "Failed to parse form"},
		})
	}

	if err := payload.Validate(); err != nil {
		return a.render(c, fiber.StatusBadRequest, a.Views.PasswordResetConfirm, fiber.Map{
			"validlink":  true,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	err := a.finalizeReset.Execute(c.UserContext(), FinalizePasswordResetMessage{
		UIDB64:   c.Params("uidb64"),
		Token:    c.Params("token"),
		Password: payload.Password,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return a.render(c, fiber.StatusOK, a.Views.PasswordResetConfirm, fiber.Map{
				"validlink":  false,
				"validation": map[string]string{},
			})
		}
		if validationErrs := FormatValidationErrorToMap(err); len(validationErrs) > 0 {
			return a.render(c, fiber.StatusBadRequest, a.Views.PasswordResetConfirm, fiber.Map{
				"validlink":  true,
				"validation": validationErrs,
			})
		}
		return a.ErrorHandler(c, err)
	}

	return c.Redirect(a.routePath(a.Routes.PasswordResetComplete), fiber.StatusSeeOther)
}

func (a *AccountController) PasswordResetComplete(c *fiber.Ctx) error {
	return a.render(c, fiber.StatusOK, a.Views.PasswordResetComplete, fiber.Map{
		"login_url": a.routePath(a.Routes.Login),
	})
}

// routePath returns the public path of a route registered under the mount
// path used for email links.
func (a *AccountController) routePath(route string) string {
	return a.Links.MountPath() + route
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors found in err
// into field -> message. Other errors yield an empty map.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return out
	}

	for field, fieldErr := range verrs {
		if fieldErr != nil {
			out[field] = fieldErr.Error()
		}
	}

	return out
}
