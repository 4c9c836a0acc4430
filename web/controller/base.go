// Package controller provides the HTTP handlers of the patient registry:
// login and session status, the patient listing and its admin-only writes,
// and doctor account management.
package controller

import (
	"net/http"
	"strconv"

	"github.com/medreg/patient-registry/logger"
	"github.com/medreg/patient-registry/web/locale"
	"github.com/medreg/patient-registry/web/session"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// BaseController provides the helpers shared by every controller.
type BaseController struct{}

// flash queues a translated message for the next rendered page.
func (a *BaseController) flash(c *gin.Context, category string, msg *i18n.Message) {
	if err := session.AddFlash(c, category, locale.T(c, msg)); err != nil {
		logger.Warning("Unable to save flash message:", err)
	}
}

// redirect sends the browser to path with a GET, also after a POST.
func (a *BaseController) redirect(c *gin.Context, path string) {
	c.Redirect(http.StatusFound, path)
}

// flashRedirect is flash followed by redirect.
func (a *BaseController) flashRedirect(c *gin.Context, category string, msg *i18n.Message, path string) {
	a.flash(c, category, msg)
	a.redirect(c, path)
}

// serverError logs err and answers with the generic error page.
func (a *BaseController) serverError(c *gin.Context, err error) {
	logger.Errorf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	htmlStatus(c, http.StatusInternalServerError, "error.html", "Error", gin.H{
		"message": locale.T(c, locale.ServerError),
	})
	c.Abort()
}

// notFound answers with the error page and status 404.
func (a *BaseController) notFound(c *gin.Context) {
	htmlStatus(c, http.StatusNotFound, "error.html", "Not Found", gin.H{
		"message": http.StatusText(http.StatusNotFound),
	})
	c.Abort()
}

// paramID reads the :id path parameter. Only plain decimal digits are
// accepted; anything else answers 404 and reports false.
func (a *BaseController) paramID(c *gin.Context) (int, bool) {
	raw := c.Param("id")
	if raw == "" || len(raw) > 9 {
		a.notFound(c)
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			a.notFound(c)
			return 0, false
		}
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		a.notFound(c)
		return 0, false
	}
	return id, true
}
