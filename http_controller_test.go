package accounts_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
)

func signupForm(email, password, confirm string) url.Values {
	return url.Values{
		"full_name":        {"Ada Lovelace"},
		"email":            {email},
		"password":         {password},
		"confirm_password": {confirm},
	}
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp := env.get(t, "/users/signup")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `name="confirm_password"`)

	resp = env.postForm(t, "/users/signup", signupForm("ada@example.com", "correct horse", "correct horse"))
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.NotNil(t, findCookie(resp, env.cfg.GetContextKey()), "signup logs the user in")

	user, err := env.repo.Users().GetByIdentifier(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, user.Verified)
	assert.Equal(t, "Ada Lovelace", user.FullName)

	link := env.notifier.lastVerification(t)
	assert.Contains(t, link, testSiteURL+"/users/verify/"+accounts.EncodeUID(user.ID)+"/")
	assert.Contains(t, env.activity.types(), accounts.ActivityEventUserRegistered)
}

func TestSignupRejected(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "taken@example.com", "correct horse")

	tests := []struct {
		name     string
		form     url.Values
		status   int
		contains string
	}{
		{
			name:     "passwords differ",
			form:     signupForm("ada@example.com", "correct horse", "correct pony"),
			status:   http.StatusBadRequest,
			contains: "values must match",
		},
		{
			name:     "short password",
			form:     signupForm("ada@example.com", "short", "short"),
			status:   http.StatusBadRequest,
			contains: "the length must be between",
		},
		{
			name:     "bad email",
			form:     signupForm("ada", "correct horse", "correct horse"),
			status:   http.StatusBadRequest,
			contains: "must be a valid email address",
		},
		{
			name:     "email taken",
			form:     signupForm("taken@EXAMPLE.com", "correct horse", "correct horse"),
			status:   http.StatusConflict,
			contains: "A user with that email already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.postForm(t, "/users/signup", tt.form)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, readBody(t, resp), tt.contains)
		})
	}

	assert.Empty(t, env.notifier.verifications)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "ada@example.com", "correct horse")

	tests := []struct {
		name     string
		form     url.Values
		status   int
		location string
		contains string
	}{
		{
			name:     "wrong password",
			form:     url.Values{"email": {"ada@example.com"}, "password": {"wrong horse"}},
			status:   http.StatusUnauthorized,
			contains: "Please enter a correct email and password",
		},
		{
			name:     "unknown user",
			form:     url.Values{"email": {"nobody@example.com"}, "password": {"correct horse"}},
			status:   http.StatusUnauthorized,
			contains: "Please enter a correct email and password",
		},
		{
			name:   "missing password",
			form:   url.Values{"email": {"ada@example.com"}},
			status: http.StatusBadRequest,
		},
		{
			name:     "success",
			form:     url.Values{"email": {"ada@example.com"}, "password": {"correct horse"}},
			status:   http.StatusSeeOther,
			location: "/",
		},
		{
			name:     "success with next",
			form:     url.Values{"email": {"ada@example.com"}, "password": {"correct horse"}, "next": {"/users/verification"}},
			status:   http.StatusSeeOther,
			location: "/users/verification",
		},
		{
			name:     "off site next is ignored",
			form:     url.Values{"email": {"ada@example.com"}, "password": {"correct horse"}, "next": {"//evil.example.com"}},
			status:   http.StatusSeeOther,
			location: "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.postForm(t, "/users/login", tt.form)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.location != "" {
				assert.Equal(t, tt.location, resp.Header.Get("Location"))
			}
			if tt.contains != "" {
				assert.Contains(t, readBody(t, resp), tt.contains)
			}
		})
	}
}

func TestLoginRememberMe(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "ada@example.com", "correct horse")

	short := findCookie(env.postForm(t, "/users/login", url.Values{
		"email": {"ada@example.com"}, "password": {"correct horse"},
	}), env.cfg.GetContextKey())
	long := findCookie(env.postForm(t, "/users/login", url.Values{
		"email": {"ada@example.com"}, "password": {"correct horse"}, "remember_me": {"true"},
	}), env.cfg.GetContextKey())

	require.NotNil(t, short)
	require.NotNil(t, long)
	assert.True(t, long.Expires.After(short.Expires.Add(12*time.Hour)))
}

func TestLoginInactiveUser(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "ada@example.com", "correct horse")
	require.NoError(t, env.repo.Users().SetActive(context.Background(), user.ID, false))

	resp := env.postForm(t, "/users/login", url.Values{"email": {"ada@example.com"}, "password": {"correct horse"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "This account is inactive")
}

func TestLoginLockout(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "ada@example.com", "correct horse")

	for i := 0; i < accounts.MaxLoginAttempts; i++ {
		resp := env.postForm(t, "/users/login", url.Values{"email": {"ada@example.com"}, "password": {"wrong horse"}})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := env.postForm(t, "/users/login", url.Values{"email": {"ada@example.com"}, "password": {"correct horse"}})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Too many failed login attempts")
}

func TestLoginShowRedirectsAuthenticatedUsers(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "ada@example.com", "correct horse")
	cookie := env.login(t, "ada@example.com", "correct horse")

	resp := env.get(t, "/users/login?next=/users/verification", cookie)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/users/verification", resp.Header.Get("Location"))
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "ada@example.com", "correct horse")
	cookie := env.login(t, "ada@example.com", "correct horse")

	resp := env.get(t, "/users/logout", cookie)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	cleared := findCookie(resp, env.cfg.GetContextKey())
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Contains(t, env.activity.types(), accounts.ActivityEventLogout)
}

func TestLoginRequired(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/users/verification")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/users/login?next=%2Fusers%2Fverification", resp.Header.Get("Location"))
	assert.NotNil(t, findCookie(resp, env.cfg.GetRejectedRouteKey()))

	req := httptest.NewRequest(http.MethodPost, "/users/verification", nil)
	resp = env.do(t, req)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	// a forged session cookie is dropped and the request stays anonymous
	resp = env.get(t, "/users/verification", &http.Cookie{Name: env.cfg.GetContextKey(), Value: "forged"})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "ada@example.com", "correct horse")
	cookie := env.login(t, "ada@example.com", "correct horse")

	resp := env.get(t, "/users/verification", cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, httptest.NewRequest(http.MethodPost, "/users/verification", nil), cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	link := env.notifier.lastVerification(t)

	resp = env.get(t, linkPath(link))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	stored, err := env.repo.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Verified)

	resp = env.get(t, linkPath(link))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.get(t, "/users/verify/garbage/token")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "ada@example.com", "correct horse")

	resp := env.get(t, "/users/password-reset")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.postForm(t, "/users/password-reset", url.Values{"email": {"nobody@example.com"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/users/password-reset/done", resp.Header.Get("Location"))
	assert.Empty(t, env.notifier.resets)

	resp = env.postForm(t, "/users/password-reset", url.Values{"email": {"ada@example.com"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/users/password-reset/done", resp.Header.Get("Location"))

	resp = env.get(t, "/users/password-reset/done")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	path := linkPath(env.notifier.lastReset(t))

	resp = env.get(t, path)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `name="confirm_password"`)

	resp = env.postForm(t, path, url.Values{"password": {"a new password"}, "confirm_password": {"another one"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "values must match")

	resp = env.postForm(t, path, url.Values{"password": {"a new password"}, "confirm_password": {"a new password"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/users/password-reset/complete", resp.Header.Get("Location"))

	resp = env.get(t, "/users/password-reset/complete")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "/users/login")

	resp = env.get(t, path)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Invalid link")
	assert.NotContains(t, body, `name="confirm_password"`)

	resp = env.postForm(t, path, url.Values{"password": {"third password"}, "confirm_password": {"third password"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Invalid link")

	env.login(t, "ada@example.com", "a new password")
}

func TestAdminUsers(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin@example.com", "correct horse", accounts.WithRole(accounts.RoleAdmin))
	for i := 0; i < 4; i++ {
		env.createUser(t, fmt.Sprintf("member%d@example.com", i), "correct horse")
	}

	member := env.login(t, "member0@example.com", "correct horse")
	resp := env.get(t, "/users/admin/users", member)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := env.login(t, "admin@example.com", "correct horse")

	tests := []struct {
		name     string
		query    string
		number   int
		hasNext  bool
		hasPrev  bool
		first    string
		itemsLen int
	}{
		{name: "first page", query: "", number: 1, hasNext: true, first: "admin@example.com", itemsLen: 2},
		{name: "middle page", query: "?page=2", number: 2, hasNext: true, hasPrev: true, first: "member1@example.com", itemsLen: 2},
		{name: "last page", query: "?page=3", number: 3, hasPrev: true, first: "member3@example.com", itemsLen: 1},
		{name: "word", query: "?page=last", number: 1, hasNext: true, first: "admin@example.com", itemsLen: 2},
		{name: "out of range", query: "?page=99", number: 3, hasPrev: true, first: "member3@example.com", itemsLen: 1},
		{name: "junk", query: "?page=abc", number: 1, hasNext: true, first: "admin@example.com", itemsLen: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/admin/users"+tt.query, nil)
			req.Header.Set("Accept", fiber.MIMEApplicationJSON)
			resp := env.do(t, req, admin)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var page struct {
				Items []struct {
					Email string `json:"email"`
				} `json:"items"`
				Number      int  `json:"number"`
				NumPages    int  `json:"num_pages"`
				Count       int  `json:"count"`
				HasNext     bool `json:"has_next"`
				HasPrevious bool `json:"has_previous"`
				Window      struct {
					PageRange []int `json:"page_range"`
				} `json:"window"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))

			assert.Equal(t, tt.number, page.Number)
			assert.Equal(t, 3, page.NumPages)
			assert.Equal(t, 5, page.Count)
			assert.Equal(t, tt.hasNext, page.HasNext)
			assert.Equal(t, tt.hasPrev, page.HasPrevious)
			assert.Equal(t, []int{1, 2, 3}, page.Window.PageRange)
			require.Len(t, page.Items, tt.itemsLen)
			assert.Equal(t, tt.first, page.Items[0].Email)
		})
	}

	resp = env.get(t, "/users/admin/users?page=2", admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "member1@example.com")
	assert.NotContains(t, body, "member3@example.com")
}

func TestAdminUserUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "admin@example.com", "correct horse", accounts.WithRole(accounts.RoleAdmin))
	ownerUser := env.createUser(t, "owner@example.com", "correct horse", accounts.WithRole(accounts.RoleOwner))
	target := env.createUser(t, "member@example.com", "correct horse")

	admin := env.login(t, "admin@example.com", "correct horse")
	path := "/users/admin/users/" + target.ID.String()

	resp := env.postForm(t, path, url.Values{"is_active": {"on"}, "user_role": {"owner"}}, admin)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	ownerPath := "/users/admin/users/" + ownerUser.ID.String()
	resp = env.postForm(t, ownerPath, url.Values{"user_role": {"owner"}}, admin)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	stored, err := env.repo.Users().GetByID(ctx, ownerUser.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)
	assert.Equal(t, accounts.RoleOwner, stored.Role)

	resp = env.postForm(t, path, url.Values{"is_active": {"on"}, "user_role": {"wizard"}}, admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.postForm(t, "/users/admin/users/not-a-uuid", url.Values{}, admin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.postForm(t, path, url.Values{"is_verified": {"on"}, "user_role": {"admin"}, "page": {"2"}}, admin)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/users/admin/users?page=2", resp.Header.Get("Location"))

	stored, err = env.repo.Users().GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.True(t, stored.Verified)
	assert.Equal(t, accounts.RoleAdmin, stored.Role)

	event, ok := env.activity.last(accounts.ActivityEventUserPermissionsUpdate)
	require.True(t, ok)
	assert.Equal(t, "member", event.Metadata["from_role"])
	assert.Equal(t, "admin", event.Metadata["to_role"])

	owner := env.login(t, "owner@example.com", "correct horse")
	resp = env.postForm(t, path, url.Values{"is_active": {"on"}, "user_role": {"owner"}}, owner)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	stored, err = env.repo.Users().GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleOwner, stored.Role)
	assert.True(t, stored.Active)
}
