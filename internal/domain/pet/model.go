package pet

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("pet: not found")
	ErrValidation = errors.New("pet: validation failed")
)

// Kind is the animal type.
type Kind string

const (
	KindDog     Kind = "dog"
	KindCat     Kind = "cat"
	KindBird    Kind = "bird"
	KindRabbit  Kind = "rabbit"
	KindHamster Kind = "hamster"
	KindFish    Kind = "fish"
	KindReptile Kind = "reptile"
	KindOther   Kind = "other"
)

var kinds = map[Kind]bool{
	KindDog: true, KindCat: true, KindBird: true, KindRabbit: true,
	KindHamster: true, KindFish: true, KindReptile: true, KindOther: true,
}

// ParseKind accepts a plain kind or the compound "reptile:<subtype>" form and
// returns the kind with the subtype, if any.
func ParseKind(s string) (Kind, string, error) {
	s = strings.TrimSpace(s)
	base, sub, _ := strings.Cut(s, ":")
	k := Kind(strings.ToLower(strings.TrimSpace(base)))
	if !kinds[k] {
		return "", "", fmt.Errorf("%w: unknown pet type %q", ErrValidation, s)
	}
	return k, strings.TrimSpace(sub), nil
}

// Gender of the animal.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

func ParseGender(s string) (Gender, error) {
	switch Gender(strings.ToLower(strings.TrimSpace(s))) {
	case GenderMale:
		return GenderMale, nil
	case GenderFemale:
		return GenderFemale, nil
	case GenderUnknown, "":
		return GenderUnknown, nil
	}
	return "", fmt.Errorf("%w: unknown gender %q", ErrValidation, s)
}

func (g *Gender) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := ParseGender(raw)
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// Pet is one owned animal. Age is derived at read time and never stored.
type Pet struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Name      string    `db:"name" json:"name"`
	Type      Kind      `db:"type" json:"type"`
	Species   *string   `db:"species" json:"species,omitempty"`
	Breed     *string   `db:"breed" json:"breed,omitempty"`
	Weight    *float64  `db:"weight" json:"weight,omitempty"`
	BirthDate time.Time `db:"birth_date" json:"birth_date"`
	Gender    Gender    `db:"gender" json:"gender"`
	Age       string    `db:"-" json:"age,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SpeciesLabel renders the kind with its subtype, e.g. "reptile:gecko".
func (p *Pet) SpeciesLabel() string {
	if p.Species != nil && *p.Species != "" && (p.Type == KindReptile || p.Type == KindOther) {
		return string(p.Type) + ":" + *p.Species
	}
	return string(p.Type)
}

// AgeInMonths uses a 30-day month.
func (p *Pet) AgeInMonths(now time.Time) int {
	if now.Before(p.BirthDate) {
		return 0
	}
	return int(now.Sub(p.BirthDate).Hours() / 24 / 30)
}
