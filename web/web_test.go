package web

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/medreg/patient-registry/config"
	"github.com/medreg/patient-registry/database"
	"github.com/medreg/patient-registry/database/model"
	"github.com/medreg/patient-registry/web/cache"
	"github.com/medreg/patient-registry/web/service"
	"github.com/medreg/patient-registry/web/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminUser = "admin"
	adminPass = "admin-pass"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testApp struct {
	srv   *httptest.Server
	clock *clock
}

// newTestApp starts the registry on a fresh database. env holds KEY=VALUE
// pairs applied over the defaults.
func newTestApp(t *testing.T, env ...string) *testApp {
	t.Helper()
	t.Setenv("PR_DEBUG", "")
	t.Setenv("SESSION_SECRET", "registry-test-secret")
	t.Setenv("SESSION_STORE", "")
	t.Setenv("WEB_DOMAIN", "")
	t.Setenv("TRUSTED_PROXIES", "")
	t.Setenv("ADMIN_USERNAME", adminUser)
	t.Setenv("ADMIN_PASSWORD", adminPass)
	for _, kv := range env {
		key, value, _ := strings.Cut(kv, "=")
		t.Setenv(key, value)
	}

	cfg := &config.DatabaseConfig{
		Type:   config.DatabaseTypeSQLite,
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "registry.db")},
	}
	require.NoError(t, database.InitDB(cfg))
	t.Cleanup(func() { _ = database.CloseDB() })

	require.NoError(t, cache.InitRedis("", ""))
	t.Cleanup(func() { _ = cache.Close() })

	app := &testApp{clock: &clock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}}
	s := NewServer()
	s.now = app.clock.Now
	engine, err := s.initRouter()
	require.NoError(t, err)

	app.srv = httptest.NewServer(engine)
	t.Cleanup(app.srv.Close)
	return app
}

// client is one browser: its own cookie jar, redirects not followed.
type client struct {
	t   *testing.T
	app *testApp
	hc  *http.Client
}

func (a *testApp) client(t *testing.T) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, app: a, hc: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (c *client) do(req *http.Request) (*http.Response, string) {
	c.t.Helper()
	resp, err := c.hc.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, string(body)
}

func (c *client) get(path string) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.app.srv.URL+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *client) post(path string, form url.Values) (*http.Response, string) {
	c.t.Helper()
	return c.do(c.postRequest(path, form))
}

func (c *client) postRequest(path string, form url.Values) *http.Request {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.app.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// sessionCookie returns the value of the session cookie held by the client.
func (c *client) sessionCookie() string {
	c.t.Helper()
	u, err := url.Parse(c.app.srv.URL)
	require.NoError(c.t, err)
	for _, ck := range c.hc.Jar.Cookies(u) {
		if ck.Name == session.CookieName {
			return ck.Value
		}
	}
	return ""
}

// follow asserts a redirect to location and returns the body of the page it leads to.
func (c *client) follow(resp *http.Response, location string) string {
	c.t.Helper()
	require.Equal(c.t, http.StatusFound, resp.StatusCode)
	require.Equal(c.t, location, resp.Header.Get("Location"))
	next, body := c.get(location)
	require.Equal(c.t, http.StatusOK, next.StatusCode)
	return body
}

func (c *client) login(username, password string) {
	c.t.Helper()
	resp, _ := c.post("/login", url.Values{"username": {username}, "password": {password}})
	body := c.follow(resp, "/")
	require.Contains(c.t, body, "Login successful!")
}

func countPatients(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, database.GetDB().Model(&model.Patient{}).Count(&n).Error)
	return n
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	for _, path := range []string{"/", "/search?q=x", "/edit/1", "/admin/doctors", "/register"} {
		resp, _ := c.get(path)
		body := c.follow(resp, "/login")
		assert.Contains(t, body, "Login required.", path)
	}

	resp, _ := c.post("/add", url.Values{"name": {"A"}, "age": {"5"}, "condition": {"x"}})
	c.follow(resp, "/login")
	assert.Zero(t, countPatients(t))
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	resp, body := c.get("/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `name="username"`)

	resp, wrongPass := c.post("/login", url.Values{"username": {adminUser}, "password": {"nope"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, wrongPass, "Invalid username or password.")

	resp, unknown := c.post("/login", url.Values{"username": {"ghost"}, "password": {"nope"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, unknown, "Invalid username or password.")

	resp, _ = c.get("/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	c.login(adminUser, adminPass)
	resp, body = c.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "admin (admin)")
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	resp, _ := c.get("/logout")
	assert.Contains(t, c.follow(resp, "/login"), "Logged out.")

	c.login(adminUser, adminPass)
	resp, _ = c.get("/logout")
	assert.Contains(t, c.follow(resp, "/login"), "Logged out.")

	resp, _ = c.get("/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestAddPatient(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	c.login(adminUser, adminPass)

	resp, _ := c.post("/add", url.Values{"name": {"A"}, "age": {"5"}, "condition": {"x"}})
	body := c.follow(resp, "/")
	assert.Contains(t, body, "Patient added.")
	assert.Contains(t, body, "<td>A</td>")
	assert.EqualValues(t, 1, countPatients(t))

	tests := []struct {
		form url.Values
		want string
	}{
		{url.Values{"name": {"A"}, "age": {"0"}, "condition": {"x"}}, "Age must be a positive number."},
		{url.Values{"name": {"A"}, "age": {"abc"}, "condition": {"x"}}, "Age must be a number."},
		{url.Values{"name": {""}, "age": {"5"}, "condition": {"x"}}, "All fields are required."},
		{url.Values{"name": {strings.Repeat("n", 101)}, "age": {"5"}, "condition": {"x"}}, "Name and condition must be under 100 characters."},
	}
	for _, tt := range tests {
		resp, _ := c.post("/add", tt.form)
		assert.Contains(t, c.follow(resp, "/"), tt.want)
	}
	assert.EqualValues(t, 1, countPatients(t))
}

func TestEditPatient(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	c.login(adminUser, adminPass)

	p := &model.Patient{Name: "A", Age: 5, Condition: "x"}
	require.NoError(t, (&service.PatientService{}).Add(p))
	editPath := "/edit/" + itoa(p.Id)

	resp, body := c.get(editPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `value="A"`)

	resp, _ = c.post(editPath, url.Values{"name": {"B"}, "age": {"6"}, "condition": {"y"}})
	assert.Contains(t, c.follow(resp, "/"), "Patient updated successfully!")

	got, err := (&service.PatientService{}).Get(p.Id)
	require.NoError(t, err)
	assert.Equal(t, model.Patient{Id: p.Id, Name: "B", Age: 6, Condition: "y"}, *got)

	resp, _ = c.post(editPath, url.Values{"name": {"C"}, "age": {"-1"}, "condition": {"z"}})
	assert.Contains(t, c.follow(resp, editPath), "Age must be a positive number.")
	got, err = (&service.PatientService{}).Get(p.Id)
	require.NoError(t, err)
	assert.Equal(t, "B", got.Name)

	resp, _ = c.get("/edit/9999")
	assert.Contains(t, c.follow(resp, "/"), "Patient not found.")

	resp, _ = c.get("/edit/abc")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeletePatient(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	c.login(adminUser, adminPass)

	p := &model.Patient{Name: "Gone", Age: 70, Condition: "x"}
	require.NoError(t, (&service.PatientService{}).Add(p))

	resp, _ := c.get("/delete/" + itoa(p.Id))
	body := c.follow(resp, "/")
	assert.Contains(t, body, "Patient deleted.")
	assert.NotContains(t, body, "<td>Gone</td>")
	assert.Zero(t, countPatients(t))

	resp, _ = c.get("/delete/" + itoa(p.Id))
	assert.Contains(t, c.follow(resp, "/"), "Patient deleted.")

	resp, _ = c.get("/delete/x1")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListingSortAndSearch(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	c.login(adminUser, adminPass)

	s := &service.PatientService{}
	for _, p := range []model.Patient{
		{Name: "Charlie", Age: 30, Condition: "Flu"},
		{Name: "Alice", Age: 50, Condition: "Asthma"},
		{Name: "Bob", Age: 40, Condition: "asthma"},
	} {
		require.NoError(t, s.Add(&p))
	}

	order := func(body string, names ...string) {
		t.Helper()
		last := -1
		for _, n := range names {
			i := strings.Index(body, "<td>"+n+"</td>")
			require.Greater(t, i, last, n)
			last = i
		}
	}

	_, body := c.get("/?sort=name&order=asc")
	order(body, "Alice", "Bob", "Charlie")

	_, body = c.get("/?sort=age&order=desc")
	order(body, "Alice", "Bob", "Charlie")

	resp, body := c.get("/?sort=password_hash&order=sideways")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	order(body, "Charlie", "Alice", "Bob")

	_, body = c.get("/search?q=ASTHMA&sort=name&order=desc")
	order(body, "Bob", "Alice")
	assert.NotContains(t, body, "<td>Charlie</td>")
}

func TestDoctorIsReadOnly(t *testing.T) {
	app := newTestApp(t)
	_, err := (&service.UserService{}).Register("house", "vicodin")
	require.NoError(t, err)
	p := &model.Patient{Name: "A", Age: 5, Condition: "x"}
	require.NoError(t, (&service.PatientService{}).Add(p))

	c := app.client(t)
	c.login("house", "vicodin")

	resp, body := c.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<td>A</td>")
	assert.NotContains(t, body, `action="/add"`)

	resp, _ = c.post("/add", url.Values{"name": {"B"}, "age": {"5"}, "condition": {"x"}})
	assert.Contains(t, c.follow(resp, "/login"), "Admin access required.")
	assert.EqualValues(t, 1, countPatients(t))

	resp, _ = c.get("/delete/" + itoa(p.Id))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.EqualValues(t, 1, countPatients(t))

	resp, _ = c.get("/admin/doctors")
	assert.Contains(t, c.follow(resp, "/login"), "Admin access required.")
}

func TestRegisterDoctor(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	c.login(adminUser, adminPass)

	resp, _ := c.post("/register", url.Values{"username": {"house"}, "password": {"pw"}})
	body := c.follow(resp, "/admin/doctors")
	assert.Contains(t, body, "User registered successfully!")
	assert.Contains(t, body, "<td>house</td>")

	resp, _ = c.post("/register", url.Values{"username": {"house"}, "password": {"other"}})
	assert.Contains(t, c.follow(resp, "/register"), "Username already exists.")

	resp, _ = c.post("/register", url.Values{"username": {"wilson"}, "password": {""}})
	assert.Contains(t, c.follow(resp, "/register"), "Username and password required.")

	doctor := app.client(t)
	doctor.login("house", "pw")
}

func TestDoctorAdministration(t *testing.T) {
	app := newTestApp(t)
	users := &service.UserService{}
	house, err := users.Register("house", "pw")
	require.NoError(t, err)
	admin, err := users.GetAdmin()
	require.NoError(t, err)

	c := app.client(t)
	c.login(adminUser, adminPass)

	_, body := c.get("/admin/doctors")
	assert.Contains(t, body, "<td>house</td>")
	assert.NotContains(t, body, "<td>"+adminUser+"</td>")

	path := "/admin/doctors/" + itoa(house.Id)
	resp, _ := c.post(path+"/change-password", url.Values{"password": {""}})
	assert.Contains(t, c.follow(resp, "/admin/doctors"), "Password required.")

	resp, _ = c.post(path+"/change-password", url.Values{"password": {"new-pw"}})
	assert.Contains(t, c.follow(resp, "/admin/doctors"), "Password updated.")
	user, err := users.CheckUser("house", "new-pw")
	require.NoError(t, err)
	assert.NotNil(t, user)

	adminPath := "/admin/doctors/" + itoa(admin.Id)
	resp, _ = c.post(adminPath+"/change-password", url.Values{"password": {"hijack"}})
	assert.Contains(t, c.follow(resp, "/admin/doctors"), "Doctor not found.")
	resp, _ = c.post(adminPath+"/delete", nil)
	assert.Contains(t, c.follow(resp, "/admin/doctors"), "Doctor not found.")

	resp, _ = c.post(path+"/delete", nil)
	body = c.follow(resp, "/admin/doctors")
	assert.Contains(t, body, "Doctor account deleted.")
	assert.NotContains(t, body, "<td>house</td>")
	user, err = users.CheckUser("house", "new-pw")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestIdleTimeout(t *testing.T) {
	for _, store := range []string{"cookie", "redis"} {
		t.Run(store, func(t *testing.T) {
			testIdleTimeout(t, newTestApp(t, "SESSION_STORE="+store))
		})
	}
}

func testIdleTimeout(t *testing.T, app *testApp) {
	c := app.client(t)
	c.login(adminUser, adminPass)

	app.clock.Advance(100 * time.Second)
	_, body := c.get("/session-status")
	assert.JSONEq(t, `{"remaining":20}`, body)

	resp, _ := c.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, body = c.get("/session-status")
	assert.JSONEq(t, `{"remaining":120}`, body)

	app.clock.Advance(121 * time.Second)
	_, body = c.get("/session-status")
	assert.JSONEq(t, `{"remaining":0}`, body)

	resp, _ = c.get("/")
	assert.Contains(t, c.follow(resp, "/login"), "Logged out due to inactivity.")

	resp, _ = c.get("/")
	assert.Contains(t, c.follow(resp, "/login"), "Login required.")
}

func TestLoginRateLimit(t *testing.T) {
	t.Setenv("LOGIN_RATE_LIMIT", "2")
	app := newTestApp(t)
	c := app.client(t)

	for range 2 {
		resp, _ := c.post("/login", url.Values{"username": {adminUser}, "password": {"bad"}})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := c.post("/login", url.Values{"username": {adminUser}, "password": {adminPass}})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, body, "Too many login attempts. Try again later.")

	resp, _ = c.get("/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestLoginRateLimitIgnoresForwardedFor(t *testing.T) {
	app := newTestApp(t, "LOGIN_RATE_LIMIT=2")
	c := app.client(t)

	for i := range 3 {
		req := c.postRequest("/login", url.Values{"username": {adminUser}, "password": {"bad"}})
		req.Header.Set("X-Forwarded-For", "10.0.0."+itoa(i+1))
		resp, _ := c.do(req)
		if i < 2 {
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		}
	}
}

func TestLoginRateLimitBehindTrustedProxy(t *testing.T) {
	app := newTestApp(t, "LOGIN_RATE_LIMIT=1", "TRUSTED_PROXIES=127.0.0.1,::1")
	c := app.client(t)

	send := func(ip string) int {
		req := c.postRequest("/login", url.Values{"username": {adminUser}, "password": {"bad"}})
		req.Header.Set("X-Forwarded-For", ip)
		resp, _ := c.do(req)
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusOK, send("203.0.113.7"))
	assert.Equal(t, http.StatusOK, send("203.0.113.8"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.7"))
}

func TestLoginRenewsSessionID(t *testing.T) {
	app := newTestApp(t, "SESSION_STORE=redis")
	c := app.client(t)

	// The redirect to the login page leaves an anonymous session behind.
	resp, _ := c.get("/")
	c.follow(resp, "/login")
	before := c.sessionCookie()
	require.NotEmpty(t, before)

	c.login(adminUser, adminPass)
	after := c.sessionCookie()
	assert.NotEqual(t, before, after)

	// The pre-login id no longer opens the logged-in session.
	planted := app.client(t)
	u, err := url.Parse(app.srv.URL)
	require.NoError(t, err)
	planted.hc.Jar.SetCookies(u, []*http.Cookie{{Name: session.CookieName, Value: before, Path: "/"}})
	resp, _ = planted.get("/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	resp, _ = c.get("/logout")
	c.follow(resp, "/login")
	assert.NotEqual(t, after, c.sessionCookie())

	stolen := app.client(t)
	stolen.hc.Jar.SetCookies(u, []*http.Cookie{{Name: session.CookieName, Value: after, Path: "/"}})
	resp, _ = stolen.get("/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestLoginLookupFailure(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	require.NoError(t, database.GetDB().Migrator().DropTable(&model.User{}))

	resp, body := c.post("/login", url.Values{"username": {adminUser}, "password": {adminPass}})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "Something went wrong")
	assert.NotContains(t, body, "Invalid username or password.")
}

func TestResubmittedEditIsIdempotent(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	c.login(adminUser, adminPass)

	p := &model.Patient{Name: "A", Age: 5, Condition: "x"}
	require.NoError(t, (&service.PatientService{}).Add(p))
	editPath := "/edit/" + itoa(p.Id)
	form := url.Values{"name": {"B"}, "age": {"6"}, "condition": {"y"}}

	for range 2 {
		resp, _ := c.post(editPath, form)
		assert.Contains(t, c.follow(resp, "/"), "Patient updated successfully!")
	}
	assert.EqualValues(t, 1, countPatients(t))
	got, err := (&service.PatientService{}).Get(p.Id)
	require.NoError(t, err)
	assert.Equal(t, model.Patient{Id: p.Id, Name: "B", Age: 6, Condition: "y"}, *got)
}

func TestAdminLogs(t *testing.T) {
	app := newTestApp(t)
	_, err := (&service.UserService{}).Register("house", "pw")
	require.NoError(t, err)

	c := app.client(t)
	resp, _ := c.post("/login", url.Values{"username": {"mallory"}, "password": {"guess"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c.login(adminUser, adminPass)

	resp, body := c.get("/admin/logs?level=warning&count=50")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "failed login for &#34;mallory&#34;")
	assert.NotContains(t, body, "logged in successfully")

	doctor := app.client(t)
	doctor.login("house", "pw")
	resp, _ = doctor.get("/admin/logs")
	assert.Contains(t, doctor.follow(resp, "/login"), "Admin access required.")
}

func TestMetricsDoNotTouchSessions(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	resp, body := c.get("/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Values("Set-Cookie"))
	assert.Contains(t, body, "patient_registry_")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestSpanishFlashes(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	req, err := http.NewRequest(http.MethodGet, app.srv.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9")
	resp, _ := c.do(req)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	_, body := c.get("/login")
	assert.Contains(t, body, "Debe iniciar sesión.")
	assert.NotContains(t, body, "Login required.")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
