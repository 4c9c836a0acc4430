package middleware

import (
	"net/http"
	"strings"

	"github.com/medreg/patient-registry/logger"
	"github.com/medreg/patient-registry/web/session"

	"github.com/gin-gonic/gin"
)

// AuditMiddleware logs every state-changing request made by a logged-in
// user once it has been handled.
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := session.GetLoginUser(c)
		if user == nil {
			c.Next()
			return
		}

		c.Next()

		action, resource := extractAction(c.Request.Method, c.FullPath())
		if action == "" {
			return
		}
		logger.Noticef("audit user=%q role=%s action=%s resource=%s id=%s status=%d ip=%s",
			user.Username, user.Role, action, resource, c.Param("id"), c.Writer.Status(), c.ClientIP())
	}
}

// extractAction maps a route onto an audit action and resource. Read-only
// requests map to an empty action.
func extractAction(method, route string) (action, resource string) {
	switch {
	case strings.HasPrefix(route, "/admin/doctors"):
		resource = "doctor"
	case route == "/register":
		resource = "doctor"
	case route == "/add", strings.HasPrefix(route, "/edit"), strings.HasPrefix(route, "/delete"):
		resource = "patient"
	default:
		return "", ""
	}

	switch {
	case strings.HasSuffix(route, "/delete") || strings.HasPrefix(route, "/delete"):
		action = "DELETE"
	case strings.HasSuffix(route, "/change-password"):
		action = "RESET_PASSWORD"
	case method != http.MethodPost:
		return "", ""
	case route == "/add" || route == "/register":
		action = "CREATE"
	default:
		action = "UPDATE"
	}
	return action, resource
}
