// Package session wraps the gin session with the registry's login state,
// idle-activity timestamp and one-shot flash messages.
package session

import (
	"encoding/gob"
	"net/http"
	"time"

	"github.com/medreg/patient-registry/database/model"
	"github.com/medreg/patient-registry/logger"
	"github.com/medreg/patient-registry/web/cache"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// CookieName is the name of the cookie holding the session (or its id).
const CookieName = "patient_registry"

const (
	keyLoggedIn     = "logged_in"
	keyUsername     = "username"
	keyRole         = "role"
	keyLastActivity = "last_activity"
)

// Flash categories, matching the alert styles of the templates.
const (
	Success = "success"
	Info    = "info"
	Warning = "warning"
	Danger  = "danger"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

// LoginUser is the identity kept in a logged-in session.
type LoginUser struct {
	Username string
	Role     model.Role
}

func init() {
	gob.Register(Flash{})
}

// Options returns the cookie options used for the session.
func Options(secure bool) sessions.Options {
	return sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetLoginUser stores user in the session under a new session id, so an id
// planted before login is worthless afterwards.
func SetLoginUser(c *gin.Context, user *model.User) error {
	s := sessions.Default(c)
	s.Set(keyLoggedIn, true)
	s.Set(keyUsername, user.Username)
	s.Set(keyRole, string(user.Role))
	return saveWithNewID(s)
}

func GetLoginUser(c *gin.Context) *LoginUser {
	s := sessions.Default(c)
	if loggedIn, _ := s.Get(keyLoggedIn).(bool); !loggedIn {
		return nil
	}
	username, _ := s.Get(keyUsername).(string)
	role, _ := s.Get(keyRole).(string)
	return &LoginUser{Username: username, Role: model.Role(role)}
}

// ClearSession drops every value of the session, including pending flashes,
// and moves it to a new id.
func ClearSession(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	return saveWithNewID(s)
}

// saveWithNewID saves s under a new id on stores that keep the values
// server side. Cookie stores already issue a new cookie on every change.
func saveWithNewID(s sessions.Session) error {
	s.Set(cache.RegenerateIDKey, true)
	err := s.Save()
	s.Delete(cache.RegenerateIDKey)
	return err
}

// LastActivity returns the time of the previous request and whether one was recorded.
func LastActivity(c *gin.Context) (time.Time, bool) {
	ms, ok := sessions.Default(c).Get(keyLastActivity).(int64)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Touch records now as the session's last activity.
func Touch(c *gin.Context, now time.Time) error {
	s := sessions.Default(c)
	s.Set(keyLastActivity, now.UnixMilli())
	return s.Save()
}

func AddFlash(c *gin.Context, category, message string) error {
	s := sessions.Default(c)
	s.AddFlash(Flash{Category: category, Message: message})
	return s.Save()
}

// Flashes pops every pending flash message.
func Flashes(c *gin.Context) []Flash {
	s := sessions.Default(c)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := s.Save(); err != nil {
		logger.Warning("Unable to save session after reading flashes:", err)
	}
	out := make([]Flash, 0, len(raw))
	for _, f := range raw {
		if flash, ok := f.(Flash); ok {
			out = append(out, flash)
		}
	}
	return out
}
