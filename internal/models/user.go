package models

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"vision-assist/backend/internal/prompt"
	"vision-assist/backend/pkg/jwt"
)

// User is an account whose profile fields personalize the system instruction
type User struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	Username        string                      `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Password        string                      `gorm:"not null" json:"-"` // bcrypt hash once saved
	Role            string                      `gorm:"size:16;default:user" json:"role"`
	Gender          *string                     `gorm:"size:16" json:"gender"`
	Age             *int                        `json:"age"`
	VisionLevel     *int                        `json:"vision_level"`
	ChronicDiseases datatypes.JSONSlice[string] `json:"chronic_diseases"`
	Others          *string                     `json:"others"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

// ProfileFields are the personalization fields shared by register and update
type ProfileFields struct {
	Gender          *string   `json:"gender,omitempty"`
	Age             *int      `json:"age,omitempty"`
	VisionLevel     *int      `json:"vision_level,omitempty"`
	ChronicDiseases *[]string `json:"chronic_diseases,omitempty"`
	Others          *string   `json:"others,omitempty"`
}

// RegisterRequest is the request structure for creating a new account
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=1,max=50"`
	Password string `json:"password" binding:"required,min=6"`
	ProfileFields
}

// LoginRequest is the request structure for user login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateUserRequest changes profile fields. Role is honored for admins only.
type UpdateUserRequest struct {
	ProfileFields
	Password *string `json:"password,omitempty"`
	Role     *string `json:"role,omitempty"`
}

// Profile field validation errors
var (
	ErrInvalidGender      = errors.New("gender must be one of male, female, other")
	ErrInvalidAge         = errors.New("age must be between 0 and 150")
	ErrInvalidVisionLevel = errors.New("vision_level must be between 0 and 5")
	ErrInvalidRole        = errors.New("role must be user or admin")
)

// Validate checks the set fields
func (f ProfileFields) Validate() error {
	if f.Gender != nil && !prompt.Gender(*f.Gender).Valid() {
		return ErrInvalidGender
	}
	if f.Age != nil && (*f.Age < 0 || *f.Age > 150) {
		return ErrInvalidAge
	}
	if f.VisionLevel != nil && (*f.VisionLevel < prompt.MinVisionLevel || *f.VisionLevel > prompt.MaxVisionLevel) {
		return ErrInvalidVisionLevel
	}
	return nil
}

// Apply copies the set fields onto u
func (f ProfileFields) Apply(u *User) {
	if f.Gender != nil {
		u.Gender = f.Gender
	}
	if f.Age != nil {
		u.Age = f.Age
	}
	if f.VisionLevel != nil {
		u.VisionLevel = f.VisionLevel
	}
	if f.ChronicDiseases != nil {
		u.ChronicDiseases = cleanList(*f.ChronicDiseases)
	}
	if f.Others != nil {
		u.Others = f.Others
	}
}

func cleanList(in []string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// HashPassword hashes a password for storage
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// BeforeCreate is a GORM hook to hash the password before saving
func (u *User) BeforeCreate(tx *gorm.DB) error {
	hashedPassword, err := HashPassword(u.Password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword

	if u.Role == "" {
		u.Role = string(jwt.RoleUser)
	}

	return nil
}

// Profile returns the snapshot read by the prompt composer
func (u *User) Profile() *prompt.Profile {
	if u == nil {
		return nil
	}
	p := &prompt.Profile{
		Username:        u.Username,
		Age:             u.Age,
		VisionLevel:     u.VisionLevel,
		ChronicDiseases: append([]string(nil), u.ChronicDiseases...),
	}
	if u.Gender != nil {
		g := prompt.Gender(*u.Gender)
		p.Gender = &g
	}
	if u.Others != nil {
		p.Others = *u.Others
	}
	return p
}
