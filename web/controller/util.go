package controller

import (
	"net/http"

	"github.com/medreg/patient-registry/config"
	"github.com/medreg/patient-registry/web/session"

	"github.com/gin-gonic/gin"
)

// getRemoteIp returns the client address. Forwarding headers only count
// when they come from a trusted proxy, see TRUSTED_PROXIES.
func getRemoteIp(c *gin.Context) string {
	return c.ClientIP()
}

// html renders an HTML template with status 200.
func html(c *gin.Context, name string, title string, data gin.H) {
	htmlStatus(c, http.StatusOK, name, title, data)
}

// htmlStatus renders an HTML template with the pending flash messages and
// the logged-in user. Flashes passed in data["flashes"] are shown after
// the queued ones.
func htmlStatus(c *gin.Context, status int, name string, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	flashes := session.Flashes(c)
	if extra, ok := data["flashes"].([]session.Flash); ok {
		flashes = append(flashes, extra...)
	}
	data["flashes"] = flashes
	data["title"] = title
	data["user"] = session.GetLoginUser(c)
	data["request_uri"] = c.Request.RequestURI
	c.HTML(status, name, getContext(data))
}

// getContext adds version and other context data to the provided gin.H.
func getContext(h gin.H) gin.H {
	a := gin.H{
		"cur_ver":      config.GetVersion(),
		"app_name":     config.GetName(),
		"idle_timeout": int(config.GetIdleTimeout().Seconds()),
	}
	for key, value := range h {
		a[key] = value
	}
	return a
}
