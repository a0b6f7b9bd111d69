package models

import (
	"time"

	"gorm.io/gorm"
)

// Article workflow statuses.
const (
	StatusReview = "REVIEW"
	StatusLive   = "LIVE"
)

// Permission codenames.
const (
	PermAddArticle     = "add_article"
	PermChangeArticle  = "change_article"
	PermDeleteArticle  = "delete_article"
	PermViewArticle    = "view_article"
	PermChangeStatus   = "change_status"
	PermAddCategory    = "add_category"
	PermChangeCategory = "change_category"
	PermDeleteCategory = "delete_category"
	PermViewCategory   = "view_category"
	PermChangeGroup    = "change_group"
)

// Field bounds shared by validation and the schema.
const (
	MaxTitleLength    = 20
	MaxStatusLength   = 10
	MaxCategoryLength = 64
	MaxUsernameLength = 150
)

type User struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex;size:150;not null"`
	PasswordHash string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;size:254;not null"`
	IsStaff      bool
	IsSuperuser  bool
	Roles        []Role `gorm:"many2many:user_roles;"`
	Profile      *Profile
}

// HasPerm reports whether the user holds the permission through one of its roles.
// Superusers hold every permission. Roles and their permissions must be preloaded.
func (u *User) HasPerm(codename string) bool {
	if u == nil {
		return false
	}
	if u.IsSuperuser {
		return true
	}
	for _, role := range u.Roles {
		for _, perm := range role.Permissions {
			if perm.Codename == codename {
				return true
			}
		}
	}
	return false
}

func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	for _, role := range u.Roles {
		if role.Name == name {
			return true
		}
	}
	return false
}

// Profile is created together with every non-superuser account.
type Profile struct {
	ID         uint `gorm:"primarykey"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	UserID     uint    `gorm:"uniqueIndex;not null"`
	Telephone  *string `gorm:"uniqueIndex;size:13"`
	TelegramID *int64  `gorm:"index"` // linked chat, enables two-factor login
}

// TwoFactorEnabled reports whether logins must be confirmed through the linked chat.
func (p *Profile) TwoFactorEnabled() bool {
	return p != nil && p.TelegramID != nil
}

type Permission struct {
	ID       uint   `gorm:"primarykey"`
	Codename string `gorm:"uniqueIndex;size:100;not null"`
	Name     string `gorm:"size:255"`
}

type Role struct {
	ID          uint         `gorm:"primarykey"`
	Name        string       `gorm:"uniqueIndex;size:150;not null"`
	Permissions []Permission `gorm:"many2many:role_permissions;"`
}

type Category struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	Name      string `gorm:"uniqueIndex;size:64;not null"`
}

type Article struct {
	ID         uint `gorm:"primarykey"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Title      string `gorm:"uniqueIndex;size:20;not null"`
	Text       string `gorm:"type:text;not null"`
	Status     string `gorm:"size:10;not null;default:REVIEW"`
	UserID     *uint
	User       *User    `gorm:"constraint:OnDelete:SET NULL"`
	CategoryID uint     `gorm:"not null;index"`
	Category   Category `gorm:"constraint:OnDelete:RESTRICT"`
}

// All lists every model managed by migrations.
func All() []any {
	return []any{
		&Permission{},
		&Role{},
		&User{},
		&Profile{},
		&Category{},
		&Article{},
	}
}
