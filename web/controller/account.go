package controller

import (
	"errors"

	"github.com/medreg/patient-registry/logger"
	"github.com/medreg/patient-registry/web/locale"
	"github.com/medreg/patient-registry/web/middleware"
	"github.com/medreg/patient-registry/web/service"
	"github.com/medreg/patient-registry/web/session"

	"github.com/gin-gonic/gin"
)

// RegisterForm is the doctor registration form.
type RegisterForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// AccountController lets admins register doctor accounts.
type AccountController struct {
	BaseController

	userService service.UserService
}

// NewAccountController creates a new AccountController and initializes its routes.
func NewAccountController(g *gin.RouterGroup) *AccountController {
	a := &AccountController{}
	a.initRouter(g)
	return a
}

func (a *AccountController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/register", middleware.AdminRequired())
	g.GET("", a.registerPage)
	g.POST("", a.register)
}

func (a *AccountController) registerPage(c *gin.Context) {
	html(c, "register.html", "Register doctor", nil)
}

func (a *AccountController) register(c *gin.Context) {
	var form RegisterForm
	_ = c.ShouldBind(&form)

	user, err := a.userService.Register(form.Username, form.Password)
	switch {
	case errors.Is(err, service.ErrEmptyCredentials):
		a.flashRedirect(c, session.Warning, locale.CredentialsRequired, "/register")
	case errors.Is(err, service.ErrUsernameTaken):
		a.flashRedirect(c, session.Danger, locale.UsernameTaken, "/register")
	case err != nil:
		a.serverError(c, err)
	default:
		logger.Infof("doctor %q registered by %s", user.Username, currentUsername(c))
		a.flashRedirect(c, session.Success, locale.UserRegistered, "/admin/doctors")
	}
}
