package web

import (
	"errors"
	"net/http"
	"slices"
	"strconv"

	"pressroom/internal/access"
	"pressroom/internal/articles"
	"pressroom/internal/models"
	"pressroom/internal/validation"

	"github.com/gin-gonic/gin"
)

var statuses = []string{models.StatusReview, models.StatusLive}

// statusChoices lists the standard statuses plus current when it is a custom one,
// so saving a form does not silently reset it.
func statusChoices(current string) []string {
	if current == "" || slices.Contains(statuses, current) {
		return statuses
	}
	return append(slices.Clone(statuses), current)
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (s *Server) index(c *gin.Context) {
	list, err := s.Articles.List(c.Request.Context())
	if err != nil {
		s.fail(c, "failed to list articles", err)
		return
	}
	categories, err := s.Articles.Categories(c.Request.Context())
	if err != nil {
		s.fail(c, "failed to list categories", err)
		return
	}
	s.render(c, http.StatusOK, "index.html", gin.H{"Articles": list, "Categories": categories})
}

// articleForm renders the new article page.
func (s *Server) articleForm(c *gin.Context, form articles.ArticleInput, errs validation.Errors) {
	categories, err := s.Articles.Categories(c.Request.Context())
	if err != nil {
		s.fail(c, "failed to list categories", err)
		return
	}
	s.render(c, http.StatusOK, "article_form.html", gin.H{
		"Form":       form,
		"Errors":     errs,
		"Categories": categories,
		"Statuses":   statusChoices(form.Status),
	})
}

func (s *Server) newArticleForm(c *gin.Context) {
	s.articleForm(c, articles.ArticleInput{}, nil)
}

func (s *Server) createArticle(c *gin.Context) {
	var form articles.ArticleInput
	if err := c.ShouldBind(&form); err != nil {
		s.articleForm(c, form, validation.Field(validation.NonField, msgBadForm))
		return
	}

	article, err := s.Articles.Create(c.Request.Context(), access.CurrentUser(c), form)
	if verrs, ok := validation.As(err); ok {
		s.articleForm(c, form, verrs)
		return
	}
	if s.denied(c, err) {
		return
	}
	if err != nil {
		s.fail(c, "failed to create article", err)
		return
	}
	s.redirect(c, "/articles/"+strconv.FormatUint(uint64(article.ID), 10))
}

func (s *Server) review(c *gin.Context) {
	list, err := s.Articles.ListForReview(c.Request.Context(), access.CurrentUser(c))
	if errors.Is(err, articles.ErrPermissionDenied) {
		s.redirect(c, access.IndexPath)
		return
	}
	if err != nil {
		s.fail(c, "failed to list articles for review", err)
		return
	}
	s.render(c, http.StatusOK, "review.html", gin.H{"Articles": list})
}

// articlePage renders an article with its edit form. form is nil unless a
// submitted edit is being redisplayed.
func (s *Server) articlePage(c *gin.Context, article *models.Article, form *articles.ArticleInput, errs validation.Errors) {
	if form == nil {
		form = &articles.ArticleInput{
			Title:      article.Title,
			Text:       article.Text,
			CategoryID: article.CategoryID,
			Status:     article.Status,
		}
	}
	categories, err := s.Articles.Categories(c.Request.Context())
	if err != nil {
		s.fail(c, "failed to list categories", err)
		return
	}
	s.render(c, http.StatusOK, "article.html", gin.H{
		"Article":    article,
		"Form":       form,
		"Errors":     errs,
		"Categories": categories,
		"Statuses":   statusChoices(form.Status),
	})
}

func (s *Server) article(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		s.redirect(c, access.IndexPath)
		return
	}
	article, err := s.Articles.Get(c.Request.Context(), id)
	if errors.Is(err, articles.ErrNotFound) {
		s.redirect(c, access.IndexPath)
		return
	}
	if err != nil {
		s.fail(c, "failed to load article", err)
		return
	}
	s.articlePage(c, article, nil, nil)
}

func (s *Server) updateArticle(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		s.redirect(c, access.IndexPath)
		return
	}
	ctx := c.Request.Context()

	var form articles.ArticleInput
	bindErr := c.ShouldBind(&form)

	var err error
	if bindErr != nil {
		err = validation.Field(validation.NonField, msgBadForm)
	} else {
		_, err = s.Articles.Update(ctx, access.CurrentUser(c), id, form)
	}

	if verrs, ok := validation.As(err); ok {
		article, getErr := s.Articles.Get(ctx, id)
		if errors.Is(getErr, articles.ErrNotFound) {
			s.redirect(c, access.IndexPath)
			return
		}
		if getErr != nil {
			s.fail(c, "failed to load article", getErr)
			return
		}
		s.articlePage(c, article, &form, verrs)
		return
	}
	if errors.Is(err, articles.ErrNotFound) {
		s.redirect(c, access.IndexPath)
		return
	}
	if s.denied(c, err) {
		return
	}
	if err != nil {
		s.fail(c, "failed to update article", err)
		return
	}
	s.redirect(c, "/articles/"+c.Param("id"))
}

func (s *Server) category(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		s.redirect(c, access.IndexPath)
		return
	}
	category, list, err := s.Articles.ListByCategory(c.Request.Context(), id)
	if errors.Is(err, articles.ErrNotFound) {
		s.redirect(c, access.IndexPath)
		return
	}
	if err != nil {
		s.fail(c, "failed to list category", err)
		return
	}
	s.render(c, http.StatusOK, "category.html", gin.H{
		"Category": category,
		"Articles": list,
		"InUse":    c.Query("error") == "in_use",
	})
}

func (s *Server) newCategoryForm(c *gin.Context) {
	s.render(c, http.StatusOK, "category_form.html", nil)
}

func (s *Server) createCategory(c *gin.Context) {
	name := c.PostForm("name")
	category, err := s.Articles.CreateCategory(c.Request.Context(), access.CurrentUser(c), name)
	if verrs, ok := validation.As(err); ok {
		s.render(c, http.StatusOK, "category_form.html", gin.H{"Name": name, "Errors": verrs})
		return
	}
	if s.denied(c, err) {
		return
	}
	if err != nil {
		s.fail(c, "failed to create category", err)
		return
	}
	s.redirect(c, "/categories/"+strconv.FormatUint(uint64(category.ID), 10))
}

func (s *Server) deleteCategory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		s.redirect(c, access.IndexPath)
		return
	}
	err := s.Articles.DeleteCategory(c.Request.Context(), access.CurrentUser(c), id)
	switch {
	case errors.Is(err, articles.ErrCategoryInUse):
		s.redirect(c, "/categories/"+c.Param("id")+"?error=in_use")
	case errors.Is(err, articles.ErrNotFound):
		s.redirect(c, access.IndexPath)
	case s.denied(c, err):
	case err != nil:
		s.fail(c, "failed to delete category", err)
	default:
		s.redirect(c, access.IndexPath)
	}
}
