package controller

import (
	"errors"
	"strconv"

	"github.com/medreg/patient-registry/logger"
	"github.com/medreg/patient-registry/web/locale"
	"github.com/medreg/patient-registry/web/middleware"
	"github.com/medreg/patient-registry/web/service"
	"github.com/medreg/patient-registry/web/session"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// validationMessages translates service validation failures.
var validationMessages = map[string]*i18n.Message{
	service.MsgFieldsRequired: locale.FieldsRequired,
	service.MsgAgeNotNumber:   locale.AgeNotNumber,
	service.MsgAgeNotPositive: locale.AgeNotPositive,
	service.MsgFieldsTooLong:  locale.FieldsTooLong,
}

// PatientForm is the add and edit form.
type PatientForm struct {
	Name      string `form:"name"`
	Age       string `form:"age"`
	Condition string `form:"condition"`
}

// PatientController serves the patient listing to every logged-in user
// and the write operations to admins.
type PatientController struct {
	BaseController

	patientService service.PatientService
}

// NewPatientController creates a new PatientController and initializes its routes.
func NewPatientController(g *gin.RouterGroup) *PatientController {
	a := &PatientController{}
	a.initRouter(g)
	return a
}

func (a *PatientController) initRouter(g *gin.RouterGroup) {
	read := g.Group("", middleware.LoginRequired())
	read.GET("/", a.index)
	read.GET("/search", a.search)

	write := g.Group("", middleware.AdminRequired())
	write.POST("/add", a.add)
	write.GET("/edit/:id", a.editPage)
	write.POST("/edit/:id", a.edit)
	write.GET("/delete/:id", a.delete)
}

func (a *PatientController) index(c *gin.Context) {
	q := service.NewListQuery(c.Query("page"), c.Query("sort"), c.Query("order"))
	page, err := a.patientService.List(q)
	if err != nil {
		a.serverError(c, err)
		return
	}
	html(c, "index.html", "Patients", gin.H{"page": page})
}

func (a *PatientController) search(c *gin.Context) {
	q := service.NewListQuery(c.Query("page"), c.Query("sort"), c.Query("order"))
	q.Term = c.Query("q")
	page, err := a.patientService.Search(q)
	if err != nil {
		a.serverError(c, err)
		return
	}
	html(c, "index.html", "Search", gin.H{"page": page, "searching": true})
}

// rejectInvalid flashes a validation failure and redirects to back. It
// reports false when err is not a validation failure.
func (a *PatientController) rejectInvalid(c *gin.Context, err error, back string) bool {
	var verr *service.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	msg, ok := validationMessages[verr.Message]
	if !ok {
		msg = &i18n.Message{ID: verr.Message, Other: verr.Message}
	}
	a.flashRedirect(c, verr.Category, msg, back)
	return true
}

func (a *PatientController) add(c *gin.Context) {
	var form PatientForm
	_ = c.ShouldBind(&form)

	patient, err := service.ValidatePatient(form.Name, form.Age, form.Condition)
	if err != nil {
		if !a.rejectInvalid(c, err, "/") {
			a.serverError(c, err)
		}
		return
	}
	if err := a.patientService.Add(patient); err != nil {
		a.serverError(c, err)
		return
	}
	logger.Infof("patient %d added by %s", patient.Id, currentUsername(c))
	a.flashRedirect(c, session.Success, locale.PatientAdded, "/")
}

func (a *PatientController) editPage(c *gin.Context) {
	id, ok := a.paramID(c)
	if !ok {
		return
	}
	patient, err := a.patientService.Get(id)
	if errors.Is(err, service.ErrPatientNotFound) {
		a.flashRedirect(c, session.Warning, locale.PatientNotFound, "/")
		return
	}
	if err != nil {
		a.serverError(c, err)
		return
	}
	html(c, "edit.html", "Edit patient", gin.H{"patient": patient})
}

func (a *PatientController) edit(c *gin.Context) {
	id, ok := a.paramID(c)
	if !ok {
		return
	}
	var form PatientForm
	_ = c.ShouldBind(&form)

	patient, err := service.ValidatePatient(form.Name, form.Age, form.Condition)
	if err != nil {
		if !a.rejectInvalid(c, err, "/edit/"+strconv.Itoa(id)) {
			a.serverError(c, err)
		}
		return
	}
	if err := a.patientService.Update(id, patient); err != nil {
		a.serverError(c, err)
		return
	}
	logger.Infof("patient %d updated by %s", id, currentUsername(c))
	a.flashRedirect(c, session.Info, locale.PatientUpdated, "/")
}

func (a *PatientController) delete(c *gin.Context) {
	id, ok := a.paramID(c)
	if !ok {
		return
	}
	if err := a.patientService.Delete(id); err != nil {
		a.serverError(c, err)
		return
	}
	logger.Infof("patient %d deleted by %s", id, currentUsername(c))
	a.flashRedirect(c, session.Danger, locale.PatientDeleted, "/")
}

func currentUsername(c *gin.Context) string {
	if user := session.GetLoginUser(c); user != nil {
		return user.Username
	}
	return ""
}
