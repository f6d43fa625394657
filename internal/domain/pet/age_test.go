package pet

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestCalculateAge(t *testing.T) {
	tests := []struct {
		name  string
		birth time.Time
		want  string
	}{
		{"born today", testNow, "0 months"},
		{"six months", testNow.AddDate(0, -6, 0), "6 months"},
		{"one month", testNow.AddDate(0, -1, 0), "1 month"},
		{"one year", testNow.AddDate(-1, 0, 0), "1 year"},
		{"one year one month", testNow.AddDate(-1, -1, 0), "1 year and 1 month"},
		{"three years five months", testNow.AddDate(-3, -5, 0), "3 years and 5 months"},
		{"day not yet reached", time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), "11 months"},
		{"future birth", testNow.AddDate(0, 2, 0), "0 months"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateAge(tt.birth, testNow); got != tt.want {
				t.Errorf("CalculateAge() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPet_AgeInMonths(t *testing.T) {
	p := &Pet{BirthDate: testNow.AddDate(0, 0, -180)}
	if got := p.AgeInMonths(testNow); got != 6 {
		t.Errorf("expected 6 months, got %d", got)
	}
	p.BirthDate = testNow.AddDate(0, 0, -179)
	if got := p.AgeInMonths(testNow); got != 5 {
		t.Errorf("expected 5 months, got %d", got)
	}
	p.BirthDate = testNow.AddDate(0, 0, 1)
	if got := p.AgeInMonths(testNow); got != 0 {
		t.Errorf("expected 0 for future birth, got %d", got)
	}
}

func TestParseKind(t *testing.T) {
	k, sub, err := ParseKind("Reptile:gecko")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != KindReptile || sub != "gecko" {
		t.Errorf("got %s/%s", k, sub)
	}
	if _, _, err := ParseKind("dragon"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestPet_SpeciesLabel(t *testing.T) {
	gecko := "gecko"
	p := &Pet{Type: KindReptile, Species: &gecko}
	if got := p.SpeciesLabel(); got != "reptile:gecko" {
		t.Errorf("got %q", got)
	}
	p = &Pet{Type: KindDog, Species: &gecko}
	if got := p.SpeciesLabel(); got != "dog" {
		t.Errorf("got %q", got)
	}
}

func TestParseGender(t *testing.T) {
	for in, want := range map[string]Gender{"Male": GenderMale, "female": GenderFemale, "": GenderUnknown} {
		got, err := ParseGender(in)
		if err != nil || got != want {
			t.Errorf("ParseGender(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseGender("x"); err == nil {
		t.Error("expected error")
	}
}
