package handlers

import (
	"net/http"
	"testing"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Email:    "Carry@Example.com",
		Password: "password123",
		Username: "carry",
		Region:   "eu-west",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decode[AuthResponse](t, rec)
	if resp.Token == "" {
		t.Fatal("expected a token")
	}
	if resp.User.Email != "carry@example.com" {
		t.Fatalf("email = %q, want lowercased", resp.User.Email)
	}
	if _, err := env.tokens.Verify(resp.Token); err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{"bad email", RegisterRequest{Email: "nope", Password: "password123", Username: "x"}},
		{"short password", RegisterRequest{Email: "a@b.com", Password: "short", Username: "x"}},
		{"empty username", RegisterRequest{Email: "a@b.com", Password: "password123", Username: "  "}},
	}
	for _, tc := range cases {
		rec := env.do(t, http.MethodPost, "/api/auth/register", "", tc.req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "taken")

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Email:    "taken@example.com",
		Password: "password123",
		Username: "other",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.seedUser(t, "midlaner")

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email:    user.Email,
		Password: "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[AuthResponse](t, rec)
	if resp.User.ID != user.ID {
		t.Fatalf("user id = %s, want %s", resp.User.ID, user.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.seedUser(t, "midlaner")

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email:    user.Email,
		Password: "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email:    "nobody@example.com",
		Password: "password123",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email status = %d, want 401", rec.Code)
	}
}

func TestMeRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.seedUser(t, "support")

	rec := env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/auth/me", "garbage-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	me := decode[map[string]any](t, rec)
	if me["email"] != user.Email {
		t.Fatalf("me email = %v, want own email visible", me["email"])
	}
}
