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

const doctorsPath = "/admin/doctors"

// DoctorAdminController lists, deletes and resets the passwords of doctor
// accounts. Admin accounts never show up here.
type DoctorAdminController struct {
	BaseController

	userService service.UserService
}

// NewDoctorAdminController creates a new DoctorAdminController and initializes its routes.
func NewDoctorAdminController(g *gin.RouterGroup) *DoctorAdminController {
	a := &DoctorAdminController{}
	a.initRouter(g)
	return a
}

func (a *DoctorAdminController) initRouter(g *gin.RouterGroup) {
	g = g.Group(doctorsPath, middleware.AdminRequired())
	g.GET("", a.list)
	g.POST("/:id/delete", a.delete)
	g.POST("/:id/change-password", a.changePassword)
}

func (a *DoctorAdminController) list(c *gin.Context) {
	doctors, err := a.userService.ListDoctors()
	if err != nil {
		a.serverError(c, err)
		return
	}
	html(c, "doctors.html", "Doctors", gin.H{"doctors": doctors})
}

func (a *DoctorAdminController) delete(c *gin.Context) {
	id, ok := a.paramID(c)
	if !ok {
		return
	}
	err := a.userService.DeleteDoctor(id)
	switch {
	case errors.Is(err, service.ErrDoctorNotFound):
		a.flashRedirect(c, session.Warning, locale.DoctorNotFound, doctorsPath)
	case err != nil:
		a.serverError(c, err)
	default:
		logger.Infof("doctor %d deleted by %s", id, currentUsername(c))
		a.flashRedirect(c, session.Success, locale.DoctorDeleted, doctorsPath)
	}
}

func (a *DoctorAdminController) changePassword(c *gin.Context) {
	id, ok := a.paramID(c)
	if !ok {
		return
	}
	err := a.userService.ResetDoctorPassword(id, c.PostForm("password"))
	switch {
	case errors.Is(err, service.ErrEmptyCredentials):
		a.flashRedirect(c, session.Warning, locale.PasswordRequired, doctorsPath)
	case errors.Is(err, service.ErrDoctorNotFound):
		a.flashRedirect(c, session.Warning, locale.DoctorNotFound, doctorsPath)
	case err != nil:
		a.serverError(c, err)
	default:
		logger.Infof("password of doctor %d reset by %s", id, currentUsername(c))
		a.flashRedirect(c, session.Success, locale.PasswordUpdated, doctorsPath)
	}
}
