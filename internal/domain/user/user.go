package user

import (
	"errors"
	"strings"
	"time"
)

// DefaultAvatar is the public path served when a user has no uploaded photo.
// The underlying asset is shared and must never be deleted.
const DefaultAvatar = "/uploads/avatars/default.png"

var allowedGenders = map[string]struct{}{
	"male":   {},
	"female": {},
	"other":  {},
}

type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	DisplayName  string    `json:"displayName"`
	Age          *int      `json:"age"`
	Gender       *string   `json:"gender"`
	IsAdmin      bool      `json:"isAdmin"`
	ProfilePhoto *string   `json:"profilePhoto"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreateUserRequest struct {
	Username    string  `json:"username" binding:"required"`
	Password    string  `json:"password" binding:"required,min=4"`
	DisplayName *string `json:"displayName" binding:"omitempty"`
	Age         *int    `json:"age" binding:"omitempty,gt=0"`
	Gender      *string `json:"gender" binding:"omitempty"`
}

// UpdateUserRequest is a sparse patch. Pointer fields distinguish
// "absent" from an explicit zero value, so age:0 is rejected by
// validation rather than silently treated as "leave unchanged".
type UpdateUserRequest struct {
	Password    *string `json:"password" binding:"omitempty,min=4"`
	DisplayName *string `json:"displayName" binding:"omitempty"`
	Age         *int    `json:"age" binding:"omitempty,gt=0"`
	Gender      *string `json:"gender" binding:"omitempty"`
	IsAdmin     *bool   `json:"isAdmin" binding:"omitempty"`
}

// New builds a user record from a create request with the password hash
// already computed. DisplayName defaults to the username.
func New(req CreateUserRequest, passwordHash string) User {
	now := time.Now().UTC()

	displayName := req.Username

	if req.DisplayName != nil && *req.DisplayName != "" {
		displayName = *req.DisplayName
	}

	return User{
		Username:     req.Username,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Age:          req.Age,
		Gender:       normalizeGender(req.Gender),
		IsAdmin:      false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Merge applies a sparse patch onto an existing record. Only fields
// present in the patch overwrite; username and createdAt are immutable.
// newPasswordHash carries the re-hashed password when the patch supplied
// one (empty means unchanged).
func Merge(existing User, patch UpdateUserRequest, newPasswordHash string) User {
	u := existing

	if newPasswordHash != "" {
		u.PasswordHash = newPasswordHash
	}

	if patch.DisplayName != nil {
		u.DisplayName = *patch.DisplayName
	}

	if patch.Age != nil {
		u.Age = patch.Age
	}

	if patch.Gender != nil {
		u.Gender = normalizeGender(patch.Gender)
	}

	if patch.IsAdmin != nil {
		u.IsAdmin = *patch.IsAdmin
	}

	u.UpdatedAt = time.Now().UTC()

	return u
}

// Validate checks record-level invariants after merging. Error messages
// are safe to surface to clients.
func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("Username is required")
	}

	if u.PasswordHash == "" {
		return errors.New("Password is required")
	}

	if u.Age != nil && *u.Age <= 0 {
		return errors.New("Age must be a positive integer")
	}

	if u.Gender != nil {
		if _, ok := allowedGenders[strings.ToLower(*u.Gender)]; !ok {
			return errors.New("Gender must be male, female, or other")
		}
	}

	return nil
}

// Sanitized returns a copy safe for client responses: the hash is already
// hidden by the json tag, and a missing photo is replaced by the default
// avatar so the frontend always has something to render.
func (u User) Sanitized() User {
	out := u

	if out.ProfilePhoto == nil || *out.ProfilePhoto == "" {
		def := DefaultAvatar
		out.ProfilePhoto = &def
	}

	return out
}

func SanitizeAll(users []User) []User {
	out := make([]User, 0, len(users))

	for _, u := range users {
		out = append(out, u.Sanitized())
	}

	return out
}

func normalizeGender(g *string) *string {
	if g == nil {
		return nil
	}

	norm := strings.ToLower(strings.TrimSpace(*g))

	return &norm
}

// ValidGender reports whether a raw gender value is acceptable, ignoring case.
func ValidGender(g string) bool {
	_, ok := allowedGenders[strings.ToLower(g)]
	return ok
}
