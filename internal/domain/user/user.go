package user

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrInvalidField = errors.New("invalid profile field")

	ErrResetTokenNotFound = errors.New("reset token not found")
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // never expose hash in JSON
	Phone        string `json:"phone"`
	Age          int    `json:"age"`

	Country    string      `json:"country,omitempty"`
	Education  []Education `json:"education"`
	Skills     []Skill     `json:"skills"`
	Interests  []string    `json:"interests"`
	Experience []string    `json:"experience"`
	Languages  []string    `json:"languages"`
	Resume     string      `json:"resume,omitempty"`

	Role Role `json:"role"`

	// digest of the active reset token, set and cleared together with the expiry
	ResetTokenHash      *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	LastLogin  time.Time  `json:"lastLogin"`
	LastLogout *time.Time `json:"lastLogout,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Public returns a copy that is safe to hand to callers.
func (u User) Public() User {
	u.PasswordHash = ""
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
	return u
}

// New builds a user ready for insertion. The ID is assigned by the store.
func New(name, email, passwordHash, phone string, age int, now time.Time) User {
	return User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Phone:        phone,
		Age:          age,
		Education:    []Education{},
		Skills:       []Skill{},
		Interests:    []string{},
		Experience:   []string{},
		Languages:    []string{},
		Role:         RoleUser,
		LastLogin:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

type EducationState string

const (
	StateFreshGraduate EducationState = "Fresh Graduate"
	StateUnderGraduate EducationState = "Under Graduate"
	StateJunior        EducationState = "Junior"
	StateSenior        EducationState = "Senior"
)

type Education struct {
	Degree     string         `json:"degree,omitempty" bson:"degree,omitempty"`
	University string         `json:"university,omitempty" bson:"university,omitempty"`
	State      EducationState `json:"state,omitempty" bson:"State,omitempty"`
}

type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelExpert       Level = "Expert"
)

type SkillLevel struct {
	Name  string `json:"name,omitempty" bson:"name,omitempty"`
	Level Level  `json:"level,omitempty" bson:"Level,omitempty"`
}

type Skill struct {
	Technical    SkillLevel `json:"technical" bson:"Technical"`
	NonTechnical SkillLevel `json:"nonTechnical" bson:"NonTechnical"`
}

// ProfileUpdate carries the whitelisted profile fields. A nil field is left untouched.
type ProfileUpdate struct {
	Name       *string
	Phone      *string
	Age        *int
	Country    *string
	Education  *[]Education
	Skills     *[]Skill
	Interests  *[]string
	Experience *[]string
	Languages  *[]string
	Resume     *string
}

func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.Phone == nil && p.Age == nil && p.Country == nil &&
		p.Education == nil && p.Skills == nil && p.Interests == nil &&
		p.Experience == nil && p.Languages == nil && p.Resume == nil
}

// Normalize rejects blank required fields, checks enum fields and fills skill levels that were left blank.
func (p *ProfileUpdate) Normalize() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidField)
	}
	if p.Phone != nil && strings.TrimSpace(*p.Phone) == "" {
		return fmt.Errorf("%w: phone must not be empty", ErrInvalidField)
	}
	if p.Age != nil && *p.Age < 0 {
		return fmt.Errorf("%w: age must not be negative", ErrInvalidField)
	}

	if p.Education != nil {
		for i, e := range *p.Education {
			switch e.State {
			case "", StateFreshGraduate, StateUnderGraduate, StateJunior, StateSenior:
			default:
				return fmt.Errorf("%w: education[%d].state %q", ErrInvalidField, i, e.State)
			}
		}
	}

	if p.Skills != nil {
		skills := *p.Skills
		for i := range skills {
			if err := normalizeLevel(&skills[i].Technical); err != nil {
				return fmt.Errorf("%w: skills[%d].technical: %v", ErrInvalidField, i, err)
			}
			if err := normalizeLevel(&skills[i].NonTechnical); err != nil {
				return fmt.Errorf("%w: skills[%d].nonTechnical: %v", ErrInvalidField, i, err)
			}
		}
	}

	return nil
}

func normalizeLevel(s *SkillLevel) error {
	switch s.Level {
	case "":
		s.Level = LevelBeginner
	case LevelBeginner, LevelIntermediate, LevelExpert:
	default:
		return fmt.Errorf("unknown level %q", s.Level)
	}
	return nil
}

// Apply copies every non-nil field of p onto u.
func (p ProfileUpdate) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Age != nil {
		u.Age = *p.Age
	}
	if p.Country != nil {
		u.Country = *p.Country
	}
	if p.Education != nil {
		u.Education = append([]Education{}, (*p.Education)...)
	}
	if p.Skills != nil {
		u.Skills = append([]Skill{}, (*p.Skills)...)
	}
	if p.Interests != nil {
		u.Interests = append([]string{}, (*p.Interests)...)
	}
	if p.Experience != nil {
		u.Experience = append([]string{}, (*p.Experience)...)
	}
	if p.Languages != nil {
		u.Languages = append([]string{}, (*p.Languages)...)
	}
	if p.Resume != nil {
		u.Resume = *p.Resume
	}
}
