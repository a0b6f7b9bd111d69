package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pressroom/internal/metrics"
	"pressroom/internal/models"
	"pressroom/internal/validation"

	"gorm.io/gorm"
)

// SignUpInput is the registration form.
type SignUpInput struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"required,email,max=100"`
	Telephone string `form:"telephone" validate:"omitempty,phone_ua"`
	Password1 string `form:"password1" validate:"required"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

// Registrar creates accounts.
type Registrar struct {
	db    *gorm.DB
	store *Store
	log   *slog.Logger
}

func NewRegistrar(db *gorm.DB, store *Store, log *slog.Logger) *Registrar {
	if log == nil {
		log = slog.Default()
	}
	return &Registrar{db: db, store: store, log: log}
}

// Register validates the form and creates the user, its profile and its "User
// group" membership in one transaction. On any error nothing is written.
// Validation problems and collisions are returned as validation.Errors.
func (r *Registrar) Register(ctx context.Context, in SignUpInput) (*models.User, error) {
	in.Username = validation.NormalizeUsername(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Telephone = strings.TrimSpace(in.Telephone)

	errs := validation.Struct(in)
	if !errs.Has("password1") && !errs.Has("password2") {
		for _, problem := range PasswordProblems(in.Password1, in.Username, in.Email) {
			errs.Add("password2", problem)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password1)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, in.Username, in.Email, in.Telephone); err != nil {
			return err
		}
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return validation.Field("username", "A user with that username already exists.")
			}
			return fmt.Errorf("create user: %w", err)
		}

		profile := &models.Profile{UserID: user.ID, Telephone: optional(in.Telephone)}
		if err := tx.Create(profile).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return validation.Field("telephone", "A profile with that phone number already exists.")
			}
			return fmt.Errorf("create profile: %w", err)
		}

		return assignRole(tx, user, RoleUser)
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("user signed up", "user_id", user.ID, "username", user.Username)
	metrics.SignUps.Inc()

	return r.store.UserByID(ctx, user.ID)
}
