package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"hw-inventory/internal/database"
	"hw-inventory/internal/logging"
	"hw-inventory/internal/middleware"
	"hw-inventory/internal/models"
)

const invalidCredentials = "Invalid username or password"

func ShowLogin(c *gin.Context) {
	if middleware.CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	render(c, http.StatusOK, "login.html", gin.H{"error": "", "next": c.Query("next")})
}

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

func Login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		render(c, http.StatusBadRequest, "login.html", gin.H{"error": "Invalid form data", "next": form.Next})
		return
	}
	form.Username = strings.TrimSpace(form.Username)
	ctx := c.Request.Context()

	var user models.User
	err := store.Transaction(ctx, func(s *database.Session) error {
		if err := s.DB().Where("username = ?", form.Username).First(&user).Error; err != nil {
			return err
		}
		if !user.IsActive {
			return errInactive
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(form.Password)); err != nil {
			return err
		}

		// bookkeeping columns are not audited, so this writes no change record
		s.Attach(&user)
		now := store.DB().NowFunc()
		user.LastLogin = &now
		user.LoginCount++
		user.LastIP = middleware.ClientAddr(c.Request)
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			logging.Ctx(ctx).Warn().Str("username", form.Username).Msg("failed login attempt")
		case errors.Is(err, errInactive):
			logging.Ctx(ctx).Warn().Str("username", form.Username).Msg("login attempt for inactive user")
		default:
			logging.Ctx(ctx).Error().Err(err).Str("username", form.Username).Msg("login failed")
			render(c, http.StatusInternalServerError, "login.html", gin.H{"error": "Login is temporarily unavailable", "next": form.Next})
			return
		}
		render(c, http.StatusUnauthorized, "login.html", gin.H{"error": invalidCredentials, "next": form.Next})
		return
	}

	sess := sessions.Default(c)
	sess.Clear()
	sess.Set(middleware.SessionUserID, user.ID)
	sess.Set(middleware.SessionUsername, user.Username)
	sess.Set(middleware.SessionRole, string(user.Role))
	if err := sess.Save(); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("failed to save session")
		render(c, http.StatusInternalServerError, "login.html", gin.H{"error": "Login is temporarily unavailable", "next": form.Next})
		return
	}

	logging.Ctx(ctx).Info().Str("username", user.Username).Str("role", string(user.Role)).Msg("user logged in")
	c.Redirect(http.StatusFound, safeNext(form.Next))
}

var errInactive = errors.New("user is inactive")

// safeNext only follows local redirects.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return next
}

func Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	_ = sess.Save()
	c.Redirect(http.StatusFound, "/login")
}

func AccessDenied(c *gin.Context) {
	render(c, http.StatusForbidden, "access_denied.html", nil)
}
