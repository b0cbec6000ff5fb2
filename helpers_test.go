package accounts_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/persistence"
)

const testSiteURL = "http://accounts.test"

type testConfig struct {
	signingKey    string
	loginRedirect string
}

var _ accounts.Config = (*testConfig)(nil)

func newTestConfig() *testConfig {
	return &testConfig{signingKey: "test-signing-key-0123456789"}
}

func (c *testConfig) GetSigningKey() string                   { return c.signingKey }
func (c *testConfig) GetContextKey() string                   { return "accounts_session" }
func (c *testConfig) GetTokenExpiration() int                 { return 1 }
func (c *testConfig) GetExtendedTokenDuration() int           { return 24 }
func (c *testConfig) GetIssuer() string                       { return "accounts-test" }
func (c *testConfig) GetAudience() []string                   { return []string{"accounts"} }
func (c *testConfig) GetRejectedRouteKey() string             { return "accounts_next" }
func (c *testConfig) GetRejectedRouteDefault() string         { return "/" }
func (c *testConfig) GetCookieSecure() bool                   { return false }
func (c *testConfig) GetSiteURL() string                      { return testSiteURL }
func (c *testConfig) GetSiteName() string                     { return "Accounts" }
func (c *testConfig) GetDefaultFromEmail() string             { return "noreply@accounts.test" }
func (c *testConfig) GetLoginRedirect() string                { return c.loginRedirect }
func (c *testConfig) GetVerificationTokenTTL() time.Duration  { return time.Hour }
func (c *testConfig) GetPasswordResetTokenTTL() time.Duration { return time.Hour }

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := persistence.Open(context.Background(), persistence.Config{
		Dialect: persistence.DialectSQLite,
		DSN:     ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, persistence.Migrate(db))
	return db
}

// fakeNotifier keeps the links it was asked to send.
type fakeNotifier struct {
	mu            sync.Mutex
	verifications []string
	resets        []string
	err           error
}

func (n *fakeNotifier) SendVerification(_ context.Context, _ *accounts.User, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.verifications = append(n.verifications, link)
	return nil
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, _ *accounts.User, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.resets = append(n.resets, link)
	return nil
}

func (n *fakeNotifier) lastVerification(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.verifications, "no verification link sent")
	return n.verifications[len(n.verifications)-1]
}

func (n *fakeNotifier) lastReset(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.resets, "no password reset link sent")
	return n.resets[len(n.resets)-1]
}

// activityRecorder is an ActivitySink keeping every event.
type activityRecorder struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event accounts.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) types() []accounts.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]accounts.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *activityRecorder) last(eventType accounts.ActivityEventType) (accounts.ActivityEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].EventType == eventType {
			return r.events[i], true
		}
	}
	return accounts.ActivityEvent{}, false
}

// testEnv is a wired fiber app over an in memory database.
type testEnv struct {
	db       *bun.DB
	repo     accounts.RepositoryManager
	cfg      *testConfig
	notifier *fakeNotifier
	activity *activityRecorder
	app      *fiber.App
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	env := &testEnv{
		db:       db,
		repo:     accounts.NewRepositoryManager(db),
		cfg:      newTestConfig(),
		notifier: &fakeNotifier{},
		activity: &activityRecorder{},
	}

	provider := accounts.NewUserProvider(env.repo.Users())
	auther := accounts.NewAuthenticator(provider, env.cfg).WithActivitySink(env.activity)
	routeAuth := accounts.NewHTTPAuthenticator(auther, env.cfg)

	env.app = fiber.New(fiber.Config{
		Views:        accounts.NewViewsEngine(),
		ErrorHandler: routeAuth.ErrorHandler,
	})
	env.app.Use(routeAuth.LoadSession())

	accounts.RegisterRoutes(env.app.Group(accounts.DefaultMountPath),
		accounts.WithControllerRepository(env.repo),
		accounts.WithControllerAuthenticator(routeAuth),
		accounts.WithControllerConfig(env.cfg),
		accounts.WithControllerNotifier(env.notifier),
		accounts.WithControllerActivitySink(env.activity),
		accounts.WithAdminPerPage(2),
	)

	return env
}

func (e *testEnv) createUser(t *testing.T, email, password string, opts ...accounts.UserOption) *accounts.User {
	t.Helper()
	user, err := accounts.CreateUser(context.Background(), e.repo.Users(), email, password, opts...)
	require.NoError(t, err)
	return user
}

func (e *testEnv) do(t *testing.T, req *http.Request, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	return e.do(t, httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	return e.do(t, req, cookies...)
}

// login posts the login form and returns the session cookie.
func (e *testEnv) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	resp := e.postForm(t, "/users/login", url.Values{"email": {email}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	cookie := findCookie(resp, e.cfg.GetContextKey())
	require.NotNil(t, cookie, "no session cookie")
	return cookie
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// linkPath strips the site URL from an emailed link.
func linkPath(link string) string {
	return strings.TrimPrefix(link, testSiteURL)
}

// linkParts returns the uidb64 and token of an emailed link.
func linkParts(t *testing.T, link string) (string, string) {
	t.Helper()
	segments := strings.Split(strings.Trim(linkPath(link), "/"), "/")
	require.GreaterOrEqual(t, len(segments), 2)
	return segments[len(segments)-2], segments[len(segments)-1]
}
