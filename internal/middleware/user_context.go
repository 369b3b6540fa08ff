package middleware

import (
	"errors"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hw-inventory/internal/audit"
	"hw-inventory/internal/logging"
	"hw-inventory/internal/models"
)

const currentUserKey = "CurrentUser"

// InjectUser loads the logged-in user for templates and handlers. A session
// pointing at a missing or deactivated account is cleared.
func InjectUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		if uid, ok := sess.Get(SessionUserID).(uint); ok && uid > 0 {
			var user models.User
			err := db.WithContext(c.Request.Context()).First(&user, uid).Error
			switch {
			case err == nil && user.IsActive:
				c.Set(currentUserKey, &user)
			case err == nil || errors.Is(err, gorm.ErrRecordNotFound):
				sess.Clear()
				if err := sess.Save(); err != nil {
					logging.Ctx(c.Request.Context()).Warn().Err(err).Msg("failed to clear stale session")
				}
			default:
				logging.Ctx(c.Request.Context()).Error().Err(err).Uint("user_id", uid).Msg("failed to load session user")
			}
		}

		c.Next()
	}
}

// CurrentUser returns the user set by InjectUser, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(currentUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// SessionIdentity resolves the actor straight from the session cookie,
// without touching the database.
func SessionIdentity(c *gin.Context) (audit.Actor, bool) {
	sess := sessions.Default(c)
	uid, ok := sess.Get(SessionUserID).(uint)
	if !ok || uid == 0 {
		return audit.Actor{}, false
	}
	username, _ := sess.Get(SessionUsername).(string)
	return audit.Actor{UserID: strconv.FormatUint(uint64(uid), 10), Username: username}, true
}
