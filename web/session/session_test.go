package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medreg/patient-registry/database/model"
	"github.com/medreg/patient-registry/logger"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	gorillasessions "github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenStore hands out empty sessions and fails every save.
type brokenStore struct{}

func (s brokenStore) Get(r *http.Request, name string) (*gorillasessions.Session, error) {
	return gorillasessions.GetRegistry(r).Get(s, name)
}

func (s brokenStore) New(_ *http.Request, name string) (*gorillasessions.Session, error) {
	session := gorillasessions.NewSession(s, name)
	session.Options = &gorillasessions.Options{Path: "/"}
	session.IsNew = true
	return session, nil
}

func (brokenStore) Save(*http.Request, http.ResponseWriter, *gorillasessions.Session) error {
	return errors.New("store unavailable")
}

func (brokenStore) Options(sessions.Options) {}

func newRouter(store sessions.Store, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions(CookieName, store))
	r.GET("/", handler)
	return r
}

func TestFlashesArePoppedOnce(t *testing.T) {
	store := cookie.NewStore([]byte("flash-test-secret"))
	r := newRouter(store, func(c *gin.Context) {
		if c.Query("add") != "" {
			require.NoError(t, AddFlash(c, Info, c.Query("add")))
		}
		c.JSON(http.StatusOK, Flashes(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?add=hello", nil))
	assert.JSONEq(t, `[{"Category":"info","Message":"hello"}]`, w.Body.String())

	// Each save sets the cookie again; the browser keeps the last one.
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[len(cookies)-1])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "null", w.Body.String())
}

func TestFlashesLogsSaveFailure(t *testing.T) {
	r := newRouter(brokenStore{}, func(c *gin.Context) {
		assert.Error(t, AddFlash(c, Warning, "careful"))
		c.JSON(http.StatusOK, Flashes(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `[{"Category":"warning","Message":"careful"}]`, w.Body.String())

	logs := strings.Join(logger.GetLogs(20, "warning"), "\n")
	assert.Contains(t, logs, "Unable to save session after reading flashes")
	assert.Contains(t, logs, "store unavailable")
}

func TestLoginUser(t *testing.T) {
	store := cookie.NewStore([]byte("login-test-secret"))
	r := newRouter(store, func(c *gin.Context) {
		assert.Nil(t, GetLoginUser(c))
		require.NoError(t, SetLoginUser(c, &model.User{Username: "house", Role: model.RoleDoctor}))
		assert.Equal(t, &LoginUser{Username: "house", Role: model.RoleDoctor}, GetLoginUser(c))

		require.NoError(t, ClearSession(c))
		assert.Nil(t, GetLoginUser(c))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
