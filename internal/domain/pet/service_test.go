package pet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vetclinic/vetclinic/internal/platform/auth"
	"github.com/vetclinic/vetclinic/internal/platform/kvstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo, err := NewRepoKV(context.Background(), kvstore.NewMemory(), time.UTC)
	if err != nil {
		t.Fatalf("NewRepoKV: %v", err)
	}
	svc := NewService(repo, time.UTC)
	svc.now = func() time.Time { return testNow }
	return svc
}

func newPet(owner string) *Pet {
	return &Pet{OwnerID: owner, Name: "Bella", Type: KindDog, BirthDate: testNow.AddDate(-1, -1, 0)}
}

func TestService_CreateComputesAge(t *testing.T) {
	svc := newTestService(t)
	p := newPet("owner-1")
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == "" {
		t.Error("expected id")
	}
	if p.Age != "1 year and 1 month" {
		t.Errorf("unexpected age %q", p.Age)
	}
	if p.Gender != GenderUnknown {
		t.Errorf("expected default gender, got %s", p.Gender)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc := newTestService(t)
	tests := []struct {
		name string
		pet  *Pet
	}{
		{"missing name", &Pet{OwnerID: "o", Type: KindCat, BirthDate: testNow}},
		{"missing type", &Pet{OwnerID: "o", Name: "x", BirthDate: testNow}},
		{"missing birth date", &Pet{OwnerID: "o", Name: "x", Type: KindCat}},
		{"reptile without species", &Pet{OwnerID: "o", Name: "x", Type: KindReptile, BirthDate: testNow}},
		{"future birth date", &Pet{OwnerID: "o", Name: "x", Type: KindCat, BirthDate: testNow.AddDate(0, 0, 3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Create(context.Background(), tt.pet); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestService_OwnerScoping(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	mine := newPet("owner-1")
	theirs := newPet("owner-2")
	for _, p := range []*Pet{mine, theirs} {
		if err := svc.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	if _, err := svc.Get(ctx, "owner-1", theirs.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another owner's pet, got %v", err)
	}
	if err := svc.Delete(ctx, "owner-1", theirs.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting another owner's pet, got %v", err)
	}
	items, err := svc.List(ctx, "owner-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].ID != mine.ID {
		t.Errorf("expected only own pet, got %d", len(items))
	}
	all, _ := svc.List(ctx, "")
	if len(all) != 2 {
		t.Errorf("expected 2 pets in unscoped list, got %d", len(all))
	}
}

func TestService_UpdateKeepsCreatedAt(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	p := newPet("owner-1")
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	created := p.CreatedAt
	svc.now = func() time.Time { return testNow.Add(time.Hour) }

	upd := &Pet{ID: p.ID, OwnerID: "owner-1", Name: "Bella II", Type: KindDog, BirthDate: p.BirthDate}
	if err := svc.Update(ctx, upd); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := svc.Get(ctx, "owner-1", p.ID)
	if got.Name != "Bella II" || !got.CreatedAt.Equal(created) {
		t.Errorf("unexpected stored pet: %+v", got)
	}
	if !got.UpdatedAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("expected updated_at bumped, got %v", got.UpdatedAt)
	}
}

func newCtx(e *echo.Echo, method, body, userID, role string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	req = req.WithContext(auth.WithIdentity(req.Context(), userID, "", "", []string{role}))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_CreateReptile(t *testing.T) {
	h := NewHandler(newTestService(t))
	e := echo.New()
	body := `{"name":"Spike","type":"reptile:gecko","birth_date":"2025-09-10","gender":"male"}`
	c, rec := newCtx(e, http.MethodPost, body, "owner-1", auth.RoleCustomer)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var p Pet
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.SpeciesLabel() != "reptile:gecko" {
		t.Errorf("unexpected species %q", p.SpeciesLabel())
	}
	if p.Age != "6 months" {
		t.Errorf("unexpected age %q", p.Age)
	}
	if p.OwnerID != "owner-1" {
		t.Errorf("expected caller as owner, got %s", p.OwnerID)
	}
}

func TestHandler_CreateBadType(t *testing.T) {
	h := NewHandler(newTestService(t))
	e := echo.New()
	c, _ := newCtx(e, http.MethodPost, `{"name":"x","type":"dragon","birth_date":"2025-01-01"}`, "owner-1", auth.RoleCustomer)

	err := h.Create(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GetOtherOwner(t *testing.T) {
	svc := newTestService(t)
	p := newPet("owner-2")
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h := NewHandler(svc)
	e := echo.New()
	c, _ := newCtx(e, http.MethodGet, "", "owner-1", auth.RoleCustomer)
	c.SetParamNames("id")
	c.SetParamValues(p.ID)

	err := h.Get(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_Delete(t *testing.T) {
	svc := newTestService(t)
	p := newPet("owner-1")
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h := NewHandler(svc)
	e := echo.New()
	c, rec := newCtx(e, http.MethodDelete, "", "owner-1", auth.RoleCustomer)
	c.SetParamNames("id")
	c.SetParamValues(p.ID)

	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestRepoKV_ReloadKeepsBirthDateZone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	ctx := context.Background()
	store := kvstore.NewMemory()
	repo, err := NewRepoKV(ctx, store, loc)
	if err != nil {
		t.Fatalf("NewRepoKV: %v", err)
	}
	svc := NewService(repo, loc)
	svc.now = func() time.Time { return testNow }
	p := newPet("owner-1")
	p.BirthDate = time.Date(2025, 7, 4, 0, 0, 0, 0, loc)
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	reopened, err := NewRepoKV(ctx, store, loc)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.GetByID(ctx, "owner-1", p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.BirthDate.Equal(p.BirthDate) || got.BirthDate.Location() != loc {
		t.Errorf("expected %v in %v, got %v", p.BirthDate, loc, got.BirthDate)
	}
}
