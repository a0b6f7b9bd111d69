package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"pressroom/internal/access"
	"pressroom/internal/accounts"
	"pressroom/internal/auth"
	"pressroom/internal/validation"

	"github.com/gin-gonic/gin"
)

const (
	msgBadCredentials = "Please enter a correct username and password. Note that both fields may be case-sensitive."
	msgNotDelivered   = "We could not send your verification code. Please try again later."
	msgBadForm        = "The submitted form is invalid."
)

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

func (s *Server) loginForm(c *gin.Context) {
	next := access.SafeNext(c.Query("next"), access.IndexPath)
	if access.CurrentUser(c) != nil {
		s.redirect(c, next)
		return
	}
	s.render(c, http.StatusOK, "login.html", gin.H{"Next": next})
}

func (s *Server) login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		s.render(c, http.StatusOK, "login.html", gin.H{"Errors": validation.Field(validation.NonField, msgBadForm)})
		return
	}
	next := access.SafeNext(form.Next, access.IndexPath)

	result, err := s.TwoFactor.Login(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		msg := msgBadCredentials
		switch {
		case errors.Is(err, accounts.ErrInvalidCredentials):
		case errors.Is(err, auth.ErrDeliveryFailed):
			msg = msgNotDelivered
		default:
			s.fail(c, "login failed", err)
			return
		}
		s.render(c, http.StatusOK, "login.html", gin.H{
			"Errors":   validation.Field(validation.NonField, msg),
			"Username": form.Username,
			"Next":     next,
		})
		return
	}

	if result.Challenged {
		s.redirect(c, "/verify/"+strconv.FormatUint(uint64(result.User.ID), 10)+"?"+url.Values{"next": {next}}.Encode())
		return
	}

	if err := s.Sessions.SetSession(c.Writer, result.User.ID); err != nil {
		s.fail(c, "failed to set session", err)
		return
	}
	s.redirect(c, next)
}

type verifyForm struct {
	Code string `form:"code"`
	Next string `form:"next"`
}

func (s *Server) verifyForm(c *gin.Context) {
	s.render(c, http.StatusOK, "verify.html", gin.H{
		"UserID": c.Param("user_id"),
		"Next":   access.SafeNext(c.Query("next"), access.IndexPath),
	})
}

// verify completes a challenged login. Any failure other than a malformed code
// sends the visitor back to the login page.
func (s *Server) verify(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		s.redirect(c, access.LoginPath)
		return
	}
	var form verifyForm
	_ = c.ShouldBind(&form)
	next := access.SafeNext(form.Next, access.IndexPath)

	user, err := s.TwoFactor.Verify(c.Request.Context(), uint(userID), form.Code)
	if verrs, ok := validation.As(err); ok {
		s.render(c, http.StatusOK, "verify.html", gin.H{
			"UserID": c.Param("user_id"),
			"Next":   next,
			"Errors": verrs,
		})
		return
	}
	if err != nil {
		if !errors.Is(err, auth.ErrChallengeInvalid) && !errors.Is(err, accounts.ErrUserNotFound) {
			s.Log.Error("verification failed", "user_id", userID, "error", err)
		}
		s.redirect(c, access.LoginURL(next))
		return
	}

	if err := s.Sessions.SetSession(c.Writer, user.ID); err != nil {
		s.fail(c, "failed to set session", err)
		return
	}
	s.redirect(c, next)
}

func (s *Server) signUpForm(c *gin.Context) {
	s.render(c, http.StatusOK, "sign_up.html", gin.H{"Form": accounts.SignUpInput{}})
}

func (s *Server) signUp(c *gin.Context) {
	var form accounts.SignUpInput
	if err := c.ShouldBind(&form); err != nil {
		s.render(c, http.StatusOK, "sign_up.html", gin.H{"Form": form, "Errors": validation.Field(validation.NonField, msgBadForm)})
		return
	}

	user, err := s.Registrar.Register(c.Request.Context(), form)
	if verrs, ok := validation.As(err); ok {
		form.Password1, form.Password2 = "", ""
		s.render(c, http.StatusOK, "sign_up.html", gin.H{"Form": form, "Errors": verrs})
		return
	}
	if err != nil {
		s.fail(c, "sign up failed", err)
		return
	}

	if err := s.Sessions.SetSession(c.Writer, user.ID); err != nil {
		s.fail(c, "failed to set session", err)
		return
	}
	s.redirect(c, access.IndexPath)
}

func (s *Server) logout(c *gin.Context) {
	s.Sessions.ClearSession(c.Writer)
	s.redirect(c, access.IndexPath)
}

func (s *Server) profile(c *gin.Context) {
	user := access.CurrentUser(c)
	profile, err := s.Store.ProfileByUserID(c.Request.Context(), user.ID)
	if err != nil && !errors.Is(err, accounts.ErrProfileNotFound) {
		s.fail(c, "failed to load profile", err)
		return
	}
	s.render(c, http.StatusOK, "profile.html", gin.H{"Profile": profile})
}

func (s *Server) updateProfile(c *gin.Context) {
	user := access.CurrentUser(c)

	var form accounts.ProfileInput
	if err := c.ShouldBind(&form); err != nil {
		s.render(c, http.StatusOK, "profile.html", gin.H{"Errors": validation.Field(validation.NonField, msgBadForm)})
		return
	}

	profile, err := s.Store.UpdateProfile(c.Request.Context(), user.ID, form)
	switch verrs, ok := validation.As(err); {
	case ok:
		current, _ := s.Store.ProfileByUserID(c.Request.Context(), user.ID)
		s.render(c, http.StatusOK, "profile.html", gin.H{"Profile": current, "Errors": verrs, "Telephone": form.Telephone})
		return
	case errors.Is(err, accounts.ErrProfileNotFound):
		s.redirect(c, "/profile")
		return
	case err != nil:
		s.fail(c, "failed to update profile", err)
		return
	}

	s.Log.Info("profile updated", "user_id", user.ID, "two_factor", profile.TwoFactorEnabled())
	s.redirect(c, "/profile")
}

func (s *Server) adminPanel(c *gin.Context) {
	users, err := s.Store.Users(c.Request.Context())
	if err != nil {
		s.fail(c, "failed to list users", err)
		return
	}
	s.render(c, http.StatusOK, "admin_panel.html", gin.H{
		"Users":     users,
		"StaffRole": accounts.RoleStaff,
		"Stats":     s.Stats.Snapshot(),
		"Failed":    c.Query("error") != "",
	})
}

// setStatus switches an account between the "user" and "staff" roles.
func (s *Server) setStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	role, ok := accounts.RoleForStatus(c.PostForm("status"))
	if err != nil || !ok {
		s.redirect(c, "/admin_panel?error=status")
		return
	}

	err = s.Store.SetRole(c.Request.Context(), uint(id), role)
	if errors.Is(err, accounts.ErrUserNotFound) {
		s.redirect(c, "/admin_panel?error=user")
		return
	}
	if err != nil {
		s.fail(c, "failed to set role", err)
		return
	}

	s.Log.Info("role changed", "user_id", id, "role", role, "by", access.CurrentUser(c).ID)
	s.redirect(c, "/admin_panel")
}
