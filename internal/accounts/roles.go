package accounts

import (
	"context"
	"fmt"
	"log/slog"

	"pressroom/internal/models"

	"gorm.io/gorm"
)

// Provisioned roles.
const (
	RoleUser  = "User group"
	RoleStaff = "Staff group"
)

type permissionDef struct {
	Codename string
	Name     string
}

var permissionDefs = []permissionDef{
	{models.PermAddArticle, "Can add article"},
	{models.PermChangeArticle, "Can change article"},
	{models.PermDeleteArticle, "Can delete article"},
	{models.PermViewArticle, "Can view article"},
	{models.PermChangeStatus, "Can change status"},
	{models.PermAddCategory, "Can add category"},
	{models.PermChangeCategory, "Can change category"},
	{models.PermDeleteCategory, "Can delete category"},
	{models.PermViewCategory, "Can view category"},
	{models.PermChangeGroup, "Can change group"},
}

type roleDef struct {
	Name        string
	Permissions []string
}

var roleDefs = []roleDef{
	{RoleUser, []string{models.PermAddArticle}},
	{RoleStaff, []string{models.PermChangeArticle, models.PermChangeStatus, models.PermAddCategory}},
}

// RoleForStatus maps the admin panel's account status to a role name.
func RoleForStatus(status string) (string, bool) {
	switch status {
	case "user":
		return RoleUser, true
	case "staff":
		return RoleStaff, true
	}
	return "", false
}

// Provisioner keeps the fixed permissions and roles present.
type Provisioner struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewProvisioner(db *gorm.DB, log *slog.Logger) *Provisioner {
	if log == nil {
		log = slog.Default()
	}
	return &Provisioner{db: db, log: log}
}

// EnsureRoles creates missing permissions and roles and attaches each role's
// defined permissions. It never detaches anything, so permissions granted by an
// operator survive repeated runs.
func (p *Provisioner) EnsureRoles(ctx context.Context) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perms := make(map[string]models.Permission, len(permissionDefs))
		for _, def := range permissionDefs {
			perm := models.Permission{Codename: def.Codename}
			if err := tx.Where(models.Permission{Codename: def.Codename}).
				Attrs(models.Permission{Name: def.Name}).
				FirstOrCreate(&perm).Error; err != nil {
				return fmt.Errorf("ensure permission %s: %w", def.Codename, err)
			}
			perms[def.Codename] = perm
		}

		for _, def := range roleDefs {
			var role models.Role
			result := tx.Where(models.Role{Name: def.Name}).FirstOrCreate(&role)
			if result.Error != nil {
				return fmt.Errorf("ensure role %s: %w", def.Name, result.Error)
			}
			if result.RowsAffected > 0 {
				p.log.Info("role created", "role", def.Name)
			}

			attach := make([]models.Permission, 0, len(def.Permissions))
			for _, codename := range def.Permissions {
				attach = append(attach, perms[codename])
			}
			if err := tx.Model(&role).Association("Permissions").Append(attach); err != nil {
				return fmt.Errorf("attach permissions to %s: %w", def.Name, err)
			}
		}
		return nil
	})
}
