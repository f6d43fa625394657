package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithRoles(roles ...string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, roles))
	return e.NewContext(req, httptest.NewRecorder())
}

func TestRequireRole_Allowed(t *testing.T) {
	c := contextWithRoles(RoleCustomer)
	err := RequireRole(RoleCustomer)(okHandler)(c)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c := contextWithRoles(RoleCustomer)
	err := RequireRole(RoleAdmin)(okHandler)(c)
	expectStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_AdminPassesEverything(t *testing.T) {
	c := contextWithRoles(RoleAdmin)
	err := RequireRole(RoleCustomer)(okHandler)(c)
	if err != nil {
		t.Errorf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_NoRoles(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err := RequireRole(RoleCustomer)(okHandler)(c)
	expectStatus(t, err, http.StatusForbidden)
}

func TestIsAdmin(t *testing.T) {
	if IsAdmin(context.Background()) {
		t.Error("empty context must not be admin")
	}
	ctx := WithIdentity(context.Background(), "u", "", "", []string{RoleCustomer, RoleAdmin})
	if !IsAdmin(ctx) {
		t.Error("expected admin")
	}
}
