package locale

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func translate(t *testing.T, header http.Header) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LocalizerMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, T(c, FieldsRequired))
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header = header
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Body.String()
}

func TestTranslationFilesParse(t *testing.T) {
	require.NoError(t, InitLocalizer())
}

func TestEnglishByDefault(t *testing.T) {
	assert.Equal(t, "All fields are required.", translate(t, http.Header{}))
}

func TestAcceptLanguage(t *testing.T) {
	assert.Equal(t, "Todos los campos son obligatorios.", translate(t, http.Header{"Accept-Language": {"es-ES,es;q=0.9"}}))
}

func TestLangCookieWins(t *testing.T) {
	h := http.Header{
		"Accept-Language": {"es-ES"},
		"Cookie":          {"lang=en-US"},
	}
	assert.Equal(t, "All fields are required.", translate(t, h))
}

func TestWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "Login required.", T(c, LoginRequired))
}
