package controller

import (
	"net/http"
	"time"

	"github.com/medreg/patient-registry/config"
	"github.com/medreg/patient-registry/logger"
	"github.com/medreg/patient-registry/util/metrics"
	"github.com/medreg/patient-registry/web/locale"
	"github.com/medreg/patient-registry/web/middleware"
	"github.com/medreg/patient-registry/web/service"
	"github.com/medreg/patient-registry/web/session"

	"github.com/gin-gonic/gin"
)

// LoginForm represents the login request structure.
type LoginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// IndexController handles login, logout and the session countdown.
type IndexController struct {
	BaseController

	userService service.UserService

	idleTimeout time.Duration
	now         func() time.Time
}

// NewIndexController creates a new IndexController and initializes its routes.
// now is the clock used to report the remaining idle time.
func NewIndexController(g *gin.RouterGroup, idleTimeout time.Duration, now func() time.Time) *IndexController {
	if now == nil {
		now = time.Now
	}
	a := &IndexController{idleTimeout: idleTimeout, now: now}
	a.initRouter(g)
	return a
}

func (a *IndexController) initRouter(g *gin.RouterGroup) {
	g.GET("/login", a.loginPage)
	g.POST("/login", middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		RequestsPerMinute: config.GetLoginRateLimit(),
		OnLimit:           a.tooManyAttempts,
	}), a.login)
	g.GET("/logout", a.logout)
	g.GET("/session-status", a.sessionStatus)
}

func (a *IndexController) loginPage(c *gin.Context) {
	html(c, "login.html", "Login", gin.H{"username": ""})
}

// login checks the submitted credentials. Both failure cases show the same
// message so the form does not reveal which usernames exist.
func (a *IndexController) login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		logger.Warning("login: invalid form:", err)
	}

	user, err := a.userService.CheckUser(form.Username, form.Password)
	if err != nil {
		a.serverError(c, err)
		return
	}
	if user == nil {
		logger.Warningf("failed login for %q from %s", form.Username, getRemoteIp(c))
		metrics.FailedLoginAttempts.Inc()
		htmlStatus(c, http.StatusOK, "login.html", "Login", gin.H{
			"flashes":  []session.Flash{{Category: session.Danger, Message: locale.T(c, locale.InvalidCredentials)}},
			"username": form.Username,
		})
		return
	}

	if err := session.SetLoginUser(c, user); err != nil {
		a.serverError(c, err)
		return
	}
	logger.Infof("%s logged in successfully, Ip Address: %s", user.Username, getRemoteIp(c))
	a.flashRedirect(c, session.Success, locale.LoginSuccess, "/")
}

func (a *IndexController) tooManyAttempts(c *gin.Context) {
	htmlStatus(c, http.StatusTooManyRequests, "login.html", "Login", gin.H{
		"flashes":  []session.Flash{{Category: session.Danger, Message: locale.T(c, locale.TooManyAttempts)}},
		"username": c.PostForm("username"),
	})
}

// logout clears the session whether or not anyone was logged in.
func (a *IndexController) logout(c *gin.Context) {
	if user := session.GetLoginUser(c); user != nil {
		logger.Infof("%s logged out successfully", user.Username)
	}
	if err := session.ClearSession(c); err != nil {
		logger.Warning("Unable to save session after clearing:", err)
	}
	a.flashRedirect(c, session.Info, locale.LoggedOut, middleware.LoginPath)
}

// sessionStatus reports the seconds left before the session idles out.
// The route is exempt from the idle check, so polling it does not keep
// the session alive.
func (a *IndexController) sessionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"remaining": middleware.RemainingSeconds(c, a.idleTimeout, a.now()),
	})
}
