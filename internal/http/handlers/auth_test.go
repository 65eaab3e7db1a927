package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/careerhub/internal/auth"
	"github.com/geocoder89/careerhub/internal/domain/user"
	"github.com/geocoder89/careerhub/internal/http/handlers"
	"github.com/geocoder89/careerhub/internal/service"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuthService struct {
	signUpFn  func(ctx context.Context, in service.SignUpInput) (user.User, error)
	loginFn   func(ctx context.Context, email, password string) (service.LoginResult, error)
	logoutFn  func(ctx context.Context, caller *user.User) time.Time
	currentFn func(ctx context.Context, id string) (user.User, error)
	updateFn  func(ctx context.Context, id string, upd user.ProfileUpdate) (user.User, error)
	changeFn  func(ctx context.Context, id, current, next string) error
	forgotFn  func(ctx context.Context, email string) (service.ResetTicket, error)
	resetFn   func(ctx context.Context, token, next string) error
	refreshFn func(ctx context.Context, refreshToken string) (string, error)
	deleteFn  func(ctx context.Context, id, password string) error
}

func (f *fakeAuthService) SignUp(ctx context.Context, in service.SignUpInput) (user.User, error) {
	if f.signUpFn != nil {
		return f.signUpFn(ctx, in)
	}
	return user.User{}, nil
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (service.LoginResult, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, email, password)
	}
	return service.LoginResult{}, nil
}

func (f *fakeAuthService) Logout(ctx context.Context, caller *user.User) time.Time {
	if f.logoutFn != nil {
		return f.logoutFn(ctx, caller)
	}
	return time.Time{}
}

func (f *fakeAuthService) CurrentUser(ctx context.Context, id string) (user.User, error) {
	if f.currentFn != nil {
		return f.currentFn(ctx, id)
	}
	return user.User{ID: id}, nil
}

func (f *fakeAuthService) UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, upd)
	}
	return user.User{ID: id}, nil
}

func (f *fakeAuthService) ChangePassword(ctx context.Context, id, current, next string) error {
	if f.changeFn != nil {
		return f.changeFn(ctx, id, current, next)
	}
	return nil
}

func (f *fakeAuthService) ForgotPassword(ctx context.Context, email string) (service.ResetTicket, error) {
	if f.forgotFn != nil {
		return f.forgotFn(ctx, email)
	}
	return service.ResetTicket{}, nil
}

func (f *fakeAuthService) ResetPassword(ctx context.Context, token, next string) error {
	if f.resetFn != nil {
		return f.resetFn(ctx, token, next)
	}
	return nil
}

func (f *fakeAuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	if f.refreshFn != nil {
		return f.refreshFn(ctx, refreshToken)
	}
	return "", nil
}

func (f *fakeAuthService) DeleteAccount(ctx context.Context, id, password string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id, password)
	}
	return nil
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var testCaller = user.User{ID: "u1", Email: "ada@example.com", Role: user.RoleUser}

func newAuthRouter(svc handlers.AuthService) *gin.Engine {
	h := handlers.NewAuthHandler(svc, false, nil)

	withCaller := func(fn func(*gin.Context, user.User)) gin.HandlerFunc {
		return func(c *gin.Context) { fn(c, testCaller) }
	}

	r := gin.New()
	r.POST("/signup", h.SignUp)
	r.POST("/login", h.Login)
	r.POST("/logout", func(c *gin.Context) { h.Logout(c, nil) })
	r.GET("/me", withCaller(h.Me))
	r.PUT("/profile", withCaller(h.UpdateProfile))
	r.PUT("/change-password", withCaller(h.ChangePassword))
	r.POST("/forgot-password", h.ForgotPassword)
	r.POST("/reset-password", h.ResetPassword)
	r.POST("/refresh-token", h.RefreshToken)
	r.DELETE("/account", withCaller(h.DeleteAccount))
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to unmarshal response: %v body=%s", err, w.Body.String())
	}
	return w, env
}

func cookieByName(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignUp(t *testing.T) {
	const body = `{"name":"Ada","email":"ada@example.com","password":"pw","phone":"555","age":36}`

	t.Run("created", func(t *testing.T) {
		var got service.SignUpInput
		svc := &fakeAuthService{signUpFn: func(_ context.Context, in service.SignUpInput) (user.User, error) {
			got = in
			return user.User{ID: "u1"}, nil
		}}

		w, _ := do(t, newAuthRouter(svc), http.MethodPost, "/signup", body)

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `"Message":"User Created Successfully"`) {
			t.Fatalf("unexpected body: %s", w.Body.String())
		}
		if got.Age != 36 || got.Email != "ada@example.com" {
			t.Fatalf("service got %+v", got)
		}
	})

	t.Run("email taken", func(t *testing.T) {
		svc := &fakeAuthService{signUpFn: func(context.Context, service.SignUpInput) (user.User, error) {
			return user.User{}, service.ErrEmailTaken
		}}

		w, env := do(t, newAuthRouter(svc), http.MethodPost, "/signup", body)

		if w.Code != http.StatusBadRequest || env.Error.Code != "email_taken" || env.Message != "User Already Exists" {
			t.Fatalf("got %d %+v", w.Code, env)
		}
	})

	t.Run("age zero is accepted", func(t *testing.T) {
		w, _ := do(t, newAuthRouter(&fakeAuthService{}), http.MethodPost, "/signup",
			`{"name":"Ada","email":"ada@example.com","password":"pw","phone":"555","age":0}`)

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}
	})
}

func TestLogin(t *testing.T) {
	t.Run("success sets both cookies", func(t *testing.T) {
		svc := &fakeAuthService{loginFn: func(_ context.Context, email, _ string) (service.LoginResult, error) {
			return service.LoginResult{
				AccessToken:  "access-1",
				RefreshToken: "refresh-1",
				AccessTTL:    7 * 24 * time.Hour,
				RefreshTTL:   30 * 24 * time.Hour,
				User:         user.User{ID: "u1", Email: email, Role: user.RoleUser},
			}, nil
		}}

		w, env := do(t, newAuthRouter(svc), http.MethodPost, "/login", `{"email":"ada@example.com","password":"pw"}`)

		if w.Code != http.StatusOK || !env.Status {
			t.Fatalf("got %d body=%s", w.Code, w.Body.String())
		}

		var data struct {
			Token        string `json:"token"`
			RefreshToken string `json:"refreshToken"`
			ExpiresIn    string `json:"expiresIn"`
			User         struct {
				ID    string `json:"id"`
				Email string `json:"email"`
				Role  string `json:"role"`
			} `json:"user"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("data: %v", err)
		}
		if data.Token != "access-1" || data.RefreshToken != "refresh-1" || data.ExpiresIn != "7d" {
			t.Fatalf("unexpected data: %+v", data)
		}
		if data.User.ID != "u1" || data.User.Role != "user" {
			t.Fatalf("unexpected user: %+v", data.User)
		}

		access := cookieByName(w, "token")
		if access == nil || access.Value != "access-1" || !access.HttpOnly || access.SameSite != http.SameSiteStrictMode {
			t.Fatalf("bad access cookie: %+v", access)
		}
		if access.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
			t.Fatalf("access cookie max-age = %d", access.MaxAge)
		}
		if refresh := cookieByName(w, "refreshToken"); refresh == nil || refresh.Value != "refresh-1" {
			t.Fatalf("bad refresh cookie: %+v", refresh)
		}
	})

	t.Run("invalid credentials", func(t *testing.T) {
		svc := &fakeAuthService{loginFn: func(context.Context, string, string) (service.LoginResult, error) {
			return service.LoginResult{}, service.ErrInvalidCredentials
		}}

		w, env := do(t, newAuthRouter(svc), http.MethodPost, "/login", `{"email":"ada@example.com","password":"nope"}`)

		if w.Code != http.StatusBadRequest || env.Error.Code != "invalid_credentials" {
			t.Fatalf("got %d %+v", w.Code, env)
		}
		if cookieByName(w, "token") != nil {
			t.Fatal("no cookie should be set on failure")
		}
	})

	t.Run("missing password", func(t *testing.T) {
		w, env := do(t, newAuthRouter(&fakeAuthService{}), http.MethodPost, "/login", `{"email":"ada@example.com"}`)

		if w.Code != http.StatusBadRequest || env.Error.Code != "invalid_request" {
			t.Fatalf("got %d %+v", w.Code, env)
		}
	})

	t.Run("store failure does not leak", func(t *testing.T) {
		svc := &fakeAuthService{loginFn: func(context.Context, string, string) (service.LoginResult, error) {
			return service.LoginResult{}, errors.New("mongo: connection reset by peer")
		}}

		w, env := do(t, newAuthRouter(svc), http.MethodPost, "/login", `{"email":"ada@example.com","password":"pw"}`)

		if w.Code != http.StatusInternalServerError || env.Error.Code != "internal_error" {
			t.Fatalf("got %d %+v", w.Code, env)
		}
		if strings.Contains(w.Body.String(), "mongo") {
			t.Fatalf("internal error leaked: %s", w.Body.String())
		}
	})
}

func TestLogout_ClearsCookiesWithoutIdentity(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeAuthService{logoutFn: func(context.Context, *user.User) time.Time { return at }}

	w, env := do(t, newAuthRouter(svc), http.MethodPost, "/logout", "")

	if w.Code != http.StatusOK || env.Message != "Logged Out Successfully" {
		t.Fatalf("got %d %+v", w.Code, env)
	}
	for _, name := range []string{"token", "refreshToken", "authToken"} {
		c := cookieByName(w, name)
		if c == nil || c.MaxAge >= 0 || c.Value != "" {
			t.Fatalf("cookie %s not cleared: %+v", name, c)
		}
	}
	if !strings.Contains(string(env.Data), "2026-03-01T12:00:00Z") {
		t.Fatalf("logout time missing: %s", env.Data)
	}
}

func TestMe_ReturnsProfile(t *testing.T) {
	svc := &fakeAuthService{currentFn: func(_ context.Context, id string) (user.User, error) {
		return user.User{ID: id, Name: "Ada"}, nil
	}}

	w, env := do(t, newAuthRouter(svc), http.MethodGet, "/me", "")

	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), `"Ada"`) {
		t.Fatalf("got %d body=%s", w.Code, w.Body.String())
	}
}

func TestUpdateProfile(t *testing.T) {
	t.Run("only whitelisted fields reach the service", func(t *testing.T) {
		var got user.ProfileUpdate
		svc := &fakeAuthService{updateFn: func(_ context.Context, id string, upd user.ProfileUpdate) (user.User, error) {
			got = upd
			return user.User{ID: id}, nil
		}}

		w, _ := do(t, newAuthRouter(svc), http.MethodPut, "/profile",
			`{"name":"Ada L","country":"UK","role":"admin","email":"x@y.z","password":"pw"}`)

		if w.Code != http.StatusOK {
			t.Fatalf("got %d body=%s", w.Code, w.Body.String())
		}
		if got.Name == nil || *got.Name != "Ada L" || got.Country == nil || *got.Country != "UK" {
			t.Fatalf("update not forwarded: %+v", got)
		}
		if got.Phone != nil || got.Age != nil {
			t.Fatalf("absent fields should stay nil: %+v", got)
		}
	})

	t.Run("bad enum", func(t *testing.T) {
		svc := &fakeAuthService{updateFn: func(context.Context, string, user.ProfileUpdate) (user.User, error) {
			return user.User{}, fmt.Errorf("%w: education[0].state %q", service.ErrValidation, "Dropped")
		}}

		w, env := do(t, newAuthRouter(svc), http.MethodPut, "/profile", `{"education":[{"state":"Dropped"}]}`)

		if w.Code != http.StatusBadRequest || env.Error.Code != "invalid_request" {
			t.Fatalf("got %d %+v", w.Code, env)
		}
	})

	t.Run("blank name is forwarded and rejected", func(t *testing.T) {
		var got user.ProfileUpdate
		svc := &fakeAuthService{updateFn: func(_ context.Context, _ string, upd user.ProfileUpdate) (user.User, error) {
			got = upd
			return user.User{}, fmt.Errorf("%w: %w", service.ErrValidation, upd.Normalize())
		}}

		w, env := do(t, newAuthRouter(svc), http.MethodPut, "/profile", `{"name":"  "}`)

		if got.Name == nil || *got.Name != "  " {
			t.Fatalf("blank name should reach the service as a set field: %+v", got)
		}
		if w.Code != http.StatusBadRequest || env.Error.Code != "invalid_request" {
			t.Fatalf("got %d %+v", w.Code, env)
		}
	})
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	svc := &fakeAuthService{changeFn: func(context.Context, string, string, string) error {
		return service.ErrInvalidCredentials
	}}

	w, env := do(t, newAuthRouter(svc), http.MethodPut, "/change-password", `{"currentPassword":"a","newPassword":"b"}`)

	if w.Code != http.StatusBadRequest || env.Error.Code != "invalid_credentials" {
		t.Fatalf("got %d %+v", w.Code, env)
	}
}

func TestForgotPassword(t *testing.T) {
	t.Run("unknown email", func(t *testing.T) {
		svc := &fakeAuthService{forgotFn: func(context.Context, string) (service.ResetTicket, error) {
			return service.ResetTicket{}, service.ErrUserNotFound
		}}

		w, env := do(t, newAuthRouter(svc), http.MethodPost, "/forgot-password", `{"email":"nobody@example.com"}`)

		if w.Code != http.StatusNotFound || env.Message != "User with this email does not exist" {
			t.Fatalf("got %d %+v", w.Code, env)
		}
	})

	t.Run("token surfaced", func(t *testing.T) {
		svc := &fakeAuthService{forgotFn: func(context.Context, string) (service.ResetTicket, error) {
			return service.ResetTicket{Token: "abc123", TTL: time.Hour}, nil
		}}

		w, _ := do(t, newAuthRouter(svc), http.MethodPost, "/forgot-password", `{"email":"ada@example.com"}`)

		var body struct {
			ResetToken string `json:"resetToken"`
			ExpiresIn  string `json:"expiresIn"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if w.Code != http.StatusOK || body.ResetToken != "abc123" || body.ExpiresIn == "" {
			t.Fatalf("got %d body=%s", w.Code, w.Body.String())
		}
	})
}

func TestResetPassword_InvalidToken(t *testing.T) {
	svc := &fakeAuthService{resetFn: func(context.Context, string, string) error {
		return service.ErrInvalidResetToken
	}}

	w, env := do(t, newAuthRouter(svc), http.MethodPost, "/reset-password", `{"token":"stale","newPassword":"pw2"}`)

	if w.Code != http.StatusBadRequest || env.Error.Code != "invalid_reset_token" {
		t.Fatalf("got %d %+v", w.Code, env)
	}
}

func TestRefreshToken(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		cookie   *http.Cookie
		err      error
		wantCode int
		wantErr  string
		wantSeen string
	}{
		{name: "from body", body: `{"token":"r1"}`, wantCode: http.StatusOK, wantSeen: "r1"},
		{name: "from cookie", cookie: &http.Cookie{Name: "refreshToken", Value: "r2"}, wantCode: http.StatusOK, wantSeen: "r2"},
		{name: "missing", wantCode: http.StatusBadRequest, wantErr: "invalid_request"},
		{name: "expired", body: `{"token":"r3"}`, err: fmt.Errorf("%w: exp", auth.ErrTokenExpired), wantCode: http.StatusUnauthorized, wantErr: "token_expired"},
		{name: "wrong kind", body: `{"token":"r4"}`, err: auth.ErrTokenInvalid, wantCode: http.StatusUnauthorized, wantErr: "invalid_token"},
		{name: "user removed", body: `{"token":"r5"}`, err: service.ErrUserNotFound, wantCode: http.StatusUnauthorized, wantErr: "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			svc := &fakeAuthService{refreshFn: func(_ context.Context, token string) (string, error) {
				seen = token
				if tt.err != nil {
					return "", tt.err
				}
				return "new-access", nil
			}}

			var cookies []*http.Cookie
			if tt.cookie != nil {
				cookies = append(cookies, tt.cookie)
			}
			w, env := do(t, newAuthRouter(svc), http.MethodPost, "/refresh-token", tt.body, cookies...)

			if w.Code != tt.wantCode {
				t.Fatalf("got %d, want %d, body=%s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantErr != "" && env.Error.Code != tt.wantErr {
				t.Fatalf("error code = %q, want %q", env.Error.Code, tt.wantErr)
			}
			if tt.wantSeen != "" && seen != tt.wantSeen {
				t.Fatalf("service saw %q, want %q", seen, tt.wantSeen)
			}
		})
	}
}

func TestDeleteAccount(t *testing.T) {
	t.Run("wrong password", func(t *testing.T) {
		svc := &fakeAuthService{deleteFn: func(context.Context, string, string) error {
			return service.ErrInvalidCredentials
		}}

		w, env := do(t, newAuthRouter(svc), http.MethodDelete, "/account", `{"password":"nope"}`)

		if w.Code != http.StatusBadRequest || env.Error.Code != "invalid_credentials" {
			t.Fatalf("got %d %+v", w.Code, env)
		}
	})

	t.Run("deleted", func(t *testing.T) {
		var gotID string
		svc := &fakeAuthService{deleteFn: func(_ context.Context, id, _ string) error {
			gotID = id
			return nil
		}}

		w, _ := do(t, newAuthRouter(svc), http.MethodDelete, "/account", `{"password":"pw"}`)

		if w.Code != http.StatusOK || gotID != testCaller.ID {
			t.Fatalf("got %d id=%q", w.Code, gotID)
		}
		if c := cookieByName(w, "token"); c == nil || c.MaxAge >= 0 {
			t.Fatalf("token cookie not cleared: %+v", c)
		}
	})
}
