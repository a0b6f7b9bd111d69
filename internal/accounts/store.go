// Package accounts holds users, profiles and roles: the identity store, the role
// provisioner and the registration service.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pressroom/internal/models"
	"pressroom/internal/validation"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Store is the identity store.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func withDetails(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Roles.Permissions").Preload("Profile")
}

// UserByID loads a user with roles, permissions and profile.
func (s *Store) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := withDetails(s.db.WithContext(ctx)).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := withDetails(s.db.WithContext(ctx)).
		Where("username = ?", validation.NormalizeUsername(username)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Users lists every account ordered by username.
func (s *Store) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := withDetails(s.db.WithContext(ctx)).Order("username").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Authenticate checks a username and password pair.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.UserByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// CreateSuperuser creates an account with every permission. Superusers get no
// profile and no role.
func (s *Store) CreateSuperuser(ctx context.Context, username, email, password string) (*models.User, error) {
	username = validation.NormalizeUsername(username)
	email = strings.TrimSpace(email)

	errs := validation.Struct(superuserInput{Username: username, Email: email, Password: password})
	if len(password) > MaxPasswordBytes {
		errs.Add("password", msgPasswordTooLong)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsStaff:      true,
		IsSuperuser:  true,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, username, email, ""); err != nil {
			return err
		}
		return tx.Create(user).Error
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

type superuserInput struct {
	Username string `form:"username" validate:"required,max=150,username"`
	Email    string `form:"email" validate:"required,email,max=254"`
	Password string `form:"password" validate:"required"`
}

// SetRole replaces every role of the user with the named one. Holding the staff
// role also sets the staff flag.
func (s *Store) SetRole(ctx context.Context, userID uint, roleName string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := assignRole(tx, &user, roleName); err != nil {
			return err
		}
		if user.IsSuperuser {
			return nil
		}
		return tx.Model(&user).Update("is_staff", roleName == RoleStaff).Error
	})
}

func assignRole(tx *gorm.DB, user *models.User, roleName string) error {
	var role models.Role
	if err := tx.Where("name = ?", roleName).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrRoleNotFound, roleName)
		}
		return err
	}
	if err := tx.Model(user).Association("Roles").Replace(&role); err != nil {
		return fmt.Errorf("assign role %s: %w", roleName, err)
	}
	return nil
}

// checkUnique reports collisions on the unique account fields as validation
// errors. Empty values are skipped.
func checkUnique(tx *gorm.DB, username, email, telephone string) error {
	checks := []struct {
		field, value, message string
		scope                 *gorm.DB
		column                string
	}{
		{"username", username, "A user with that username already exists.", tx.Unscoped().Model(&models.User{}), "username"},
		{"email", email, "A user with that email already exists.", tx.Unscoped().Model(&models.User{}), "email"},
		{"telephone", telephone, "A profile with that phone number already exists.", tx.Model(&models.Profile{}), "telephone"},
	}

	errs := validation.Errors{}
	for _, check := range checks {
		if check.value == "" {
			continue
		}
		found, err := exists(check.scope, check.column+" = ?", check.value)
		if err != nil {
			return fmt.Errorf("check %s: %w", check.field, err)
		}
		if found {
			errs.Add(check.field, check.message)
		}
	}
	return errs.Err()
}

func exists(tx *gorm.DB, query string, args ...any) (bool, error) {
	var count int64
	if err := tx.Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) ProfileByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ProfileInput is the user-editable part of a profile.
type ProfileInput struct {
	Telephone string `form:"telephone" validate:"omitempty,phone_ua"`
	TwoFactor bool   `form:"two_factor"`
}

// UpdateProfile changes the phone number and may switch two-factor login off.
// A changed phone number unlinks the chat, which has to be linked again from the bot.
func (s *Store) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*models.Profile, error) {
	in.Telephone = strings.TrimSpace(in.Telephone)
	if err := validation.Struct(in).Err(); err != nil {
		return nil, err
	}

	var profile models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProfileNotFound
			}
			return err
		}

		current := ""
		if profile.Telephone != nil {
			current = *profile.Telephone
		}
		if in.Telephone != current {
			if in.Telephone != "" {
				if err := checkUnique(tx, "", "", in.Telephone); err != nil {
					return err
				}
			}
			profile.Telephone = optional(in.Telephone)
			profile.TelegramID = nil
		}
		if !in.TwoFactor {
			profile.TelegramID = nil
		}
		return tx.Model(&profile).Updates(map[string]any{
			"telephone":   profile.Telephone,
			"telegram_id": profile.TelegramID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// LinkTelegram attaches a chat to the profile registered with the phone number.
func (s *Store) LinkTelegram(ctx context.Context, telephone string, chatID int64) (*models.Profile, error) {
	telephone = strings.TrimSpace(telephone)
	if !strings.HasPrefix(telephone, "+") {
		telephone = "+" + telephone
	}

	var profile models.Profile
	err := s.db.WithContext(ctx).Where("telephone = ?", telephone).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	profile.TelegramID = &chatID
	if err := s.db.WithContext(ctx).Model(&profile).Update("telegram_id", chatID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
