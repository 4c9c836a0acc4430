package middleware

import (
	"net/http"

	"github.com/medreg/patient-registry/database/model"
	"github.com/medreg/patient-registry/logger"
	"github.com/medreg/patient-registry/web/locale"
	"github.com/medreg/patient-registry/web/session"

	"github.com/gin-gonic/gin"
)

// LoginPath is where rejected requests are sent.
const LoginPath = "/login"

// RoleRequired lets a request through only when the session is logged in
// and, if roles are given, holds one of them. Rejected requests get a flash
// message and a redirect to the login page before any handler runs.
func RoleRequired(roles ...model.Role) gin.HandlerFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		user := session.GetLoginUser(c)
		if user == nil {
			reject(c, session.Warning, locale.T(c, locale.LoginRequired))
			return
		}
		if len(allowed) > 0 && !allowed[user.Role] {
			logger.Warningf("user %q with role %q denied %s %s", user.Username, user.Role, c.Request.Method, c.Request.URL.Path)
			reject(c, session.Danger, locale.T(c, locale.AdminRequired))
			return
		}
		c.Next()
	}
}

func reject(c *gin.Context, category, msg string) {
	if err := session.AddFlash(c, category, msg); err != nil {
		logger.Warning("Unable to save flash message:", err)
	}
	c.Redirect(http.StatusFound, LoginPath)
	c.Abort()
}
