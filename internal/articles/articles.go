// Package articles implements the editorial workflow: categories, article
// submission and the staff review of submitted articles.
package articles

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

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrCategoryInUse    = errors.New("category is referenced by articles")
)

// ArticleInput is the article form. Status is only honoured for actors holding
// change_status when creating.
type ArticleInput struct {
	Title      string `form:"title" validate:"required,max=20"`
	Text       string `form:"text" validate:"required"`
	CategoryID uint   `form:"category" validate:"required"`
	Status     string `form:"status" validate:"max=10"`
}

type categoryInput struct {
	Name string `form:"name" validate:"required,max=64"`
}

// Service runs the article workflow against the database.
type Service struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewService(db *gorm.DB, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, log: log}
}

func (in *ArticleInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Status = strings.ToUpper(strings.TrimSpace(in.Status))
}

// Create submits an article owned by actor. Without change_status the article
// always starts in REVIEW.
func (s *Service) Create(ctx context.Context, actor *models.User, in ArticleInput) (*models.Article, error) {
	if !actor.HasPerm(models.PermAddArticle) {
		return nil, ErrPermissionDenied
	}
	in.normalize()
	if err := validation.Struct(in).Err(); err != nil {
		return nil, err
	}

	status := models.StatusReview
	if in.Status != "" && actor.HasPerm(models.PermChangeStatus) {
		status = in.Status
	}

	article := &models.Article{
		Title:      in.Title,
		Text:       in.Text,
		Status:     status,
		UserID:     &actor.ID,
		CategoryID: in.CategoryID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkArticle(tx, 0, in); err != nil {
			return err
		}
		if err := tx.Create(article).Error; err != nil {
			return translateArticleError(err, "create article")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("article created",
		"article_id", article.ID,
		"title", article.Title,
		"category_id", article.CategoryID,
		"status", article.Status,
		"user_id", actor.ID,
	)
	metrics.Articles.WithLabelValues("created").Inc()

	return s.Get(ctx, article.ID)
}

// Update overwrites the article's fields. An empty status keeps the current one.
func (s *Service) Update(ctx context.Context, actor *models.User, id uint, in ArticleInput) (*models.Article, error) {
	if !actor.HasPerm(models.PermChangeArticle) {
		return nil, ErrPermissionDenied
	}
	in.normalize()
	if err := validation.Struct(in).Err(); err != nil {
		return nil, err
	}

	var article models.Article
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&article, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := checkArticle(tx, id, in); err != nil {
			return err
		}

		updates := map[string]any{
			"title":       in.Title,
			"text":        in.Text,
			"category_id": in.CategoryID,
		}
		if in.Status != "" {
			updates["status"] = in.Status
		}
		if err := tx.Model(&article).Updates(updates).Error; err != nil {
			return translateArticleError(err, "update article")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("article updated",
		"article_id", updated.ID,
		"title", updated.Title,
		"status", updated.Status,
		"user_id", actor.ID,
	)
	metrics.Articles.WithLabelValues("updated").Inc()
	return updated, nil
}

// checkArticle verifies the category reference and title uniqueness.
// self is the id of the article being updated, 0 on create.
func checkArticle(tx *gorm.DB, self uint, in ArticleInput) error {
	errs := validation.Errors{}

	var categories int64
	if err := tx.Model(&models.Category{}).Where("id = ?", in.CategoryID).Count(&categories).Error; err != nil {
		return err
	}
	if categories == 0 {
		errs.Add("category", "Select a valid choice. That choice is not one of the available choices.")
	}

	var titles int64
	if err := tx.Model(&models.Article{}).Where("title = ? AND id <> ?", in.Title, self).Count(&titles).Error; err != nil {
		return err
	}
	if titles > 0 {
		errs.Add("title", "Article with this Title already exists.")
	}
	return errs.Err()
}

func translateArticleError(err error, op string) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return validation.Field("title", "Article with this Title already exists.")
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return validation.Field("category", "Select a valid choice. That choice is not one of the available choices.")
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ListForReview returns every article for the staff review page, pending ones first.
func (s *Service) ListForReview(ctx context.Context, actor *models.User) ([]models.Article, error) {
	if actor == nil || !(actor.IsStaff || actor.IsSuperuser) {
		return nil, ErrPermissionDenied
	}
	var articles []models.Article
	err := s.db.WithContext(ctx).
		Preload("Category").Preload("User").
		Order("CASE WHEN status = '"+models.StatusReview+"' THEN 0 ELSE 1 END").
		Order("id").
		Find(&articles).Error
	if err != nil {
		return nil, err
	}
	return articles, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Article, error) {
	var article models.Article
	err := s.db.WithContext(ctx).Preload("Category").Preload("User").First(&article, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// List returns all articles, newest first.
func (s *Service) List(ctx context.Context) ([]models.Article, error) {
	var articles []models.Article
	if err := s.db.WithContext(ctx).Preload("Category").Order("id DESC").Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

func (s *Service) ListByCategory(ctx context.Context, categoryID uint) (*models.Category, []models.Article, error) {
	category, err := s.Category(ctx, categoryID)
	if err != nil {
		return nil, nil, err
	}
	var articles []models.Article
	err = s.db.WithContext(ctx).
		Preload("Category").
		Where("category_id = ?", categoryID).
		Order("id DESC").
		Find(&articles).Error
	if err != nil {
		return nil, nil, err
	}
	return category, articles, nil
}

func (s *Service) CreateCategory(ctx context.Context, actor *models.User, name string) (*models.Category, error) {
	if !actor.HasPerm(models.PermAddCategory) {
		return nil, ErrPermissionDenied
	}
	in := categoryInput{Name: strings.TrimSpace(name)}
	if err := validation.Struct(in).Err(); err != nil {
		return nil, err
	}

	category := &models.Category{Name: in.Name}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Category{}).Where("name = ?", in.Name).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return validation.Field("name", "Category with this Name already exists.")
		}
		if err := tx.Create(category).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return validation.Field("name", "Category with this Name already exists.")
			}
			return fmt.Errorf("create category: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("category created", "category_id", category.ID, "name", category.Name, "user_id", actor.ID)
	return category, nil
}

// Categories lists categories by name.
func (s *Service) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Service) Category(ctx context.Context, id uint) (*models.Category, error) {
	var category models.Category
	err := s.db.WithContext(ctx).First(&category, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// DeleteCategory removes a category nobody references.
func (s *Service) DeleteCategory(ctx context.Context, actor *models.User, id uint) error {
	if !actor.HasPerm(models.PermDeleteCategory) {
		return ErrPermissionDenied
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category models.Category
		if err := tx.First(&category, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var refs int64
		if err := tx.Model(&models.Article{}).Where("category_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return ErrCategoryInUse
		}

		if err := tx.Delete(&category).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return ErrCategoryInUse
			}
			return fmt.Errorf("delete category: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("category deleted", "category_id", id, "user_id", actor.ID)
	return nil
}
