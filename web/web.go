// Package web provides the registry's HTTP server: middleware ordering,
// session storage, templates and the controller routes.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/medreg/patient-registry/config"
	"github.com/medreg/patient-registry/logger"
	"github.com/medreg/patient-registry/util/common"
	"github.com/medreg/patient-registry/util/random"
	"github.com/medreg/patient-registry/web/cache"
	"github.com/medreg/patient-registry/web/controller"
	"github.com/medreg/patient-registry/web/locale"
	"github.com/medreg/patient-registry/web/middleware"
	"github.com/medreg/patient-registry/web/service"
	"github.com/medreg/patient-registry/web/session"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed html/*
var htmlFS embed.FS

// sessionStatusPath is polled by the page countdown and must not refresh
// the idle window.
const sessionStatusPath = "/session-status"

// Server is the registry's web server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	index   *controller.IndexController
	patient *controller.PatientController
	account *controller.AccountController
	doctors *controller.DoctorAdminController
	logs    *controller.LogController

	// now is the clock used by the idle timeout.
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new web server instance with a cancellable context.
func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{ctx: ctx, cancel: cancel, now: time.Now}
}

// templateFuncs are the helpers the listing templates use to build links.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"columns": func() []string {
			return []string{"id", "name", "age", "condition"}
		},
		"listURL": listURL,
		"nextOrder": func(p *service.PatientPage, column string) string {
			if p.Sort == column && p.Order == "asc" {
				return "desc"
			}
			return "asc"
		},
		"isAdmin": func(u *session.LoginUser) bool {
			return u != nil && u.Role.IsAdmin()
		},
	}
}

// listURL links to page of the listing (or of the search, when p carries a
// term) with the given ordering.
func listURL(p *service.PatientPage, page int, sort, order string) string {
	v := url.Values{}
	path := "/"
	if p.Term != "" {
		path = "/search"
		v.Set("q", p.Term)
	}
	v.Set("page", strconv.Itoa(page))
	v.Set("sort", sort)
	v.Set("order", order)
	return path + "?" + v.Encode()
}

// getHtmlFiles walks the local `web/html` directory and returns a list of
// template file paths. Used only in debug/development mode.
func (s *Server) getHtmlFiles() ([]string, error) {
	files := make([]string, 0)
	dir, _ := os.Getwd()
	err := fs.WalkDir(os.DirFS(dir), "web/html", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// getHtmlTemplate parses embedded HTML templates from the bundled `htmlFS`.
func (s *Server) getHtmlTemplate(funcMap template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(htmlFS, "html/*.html")
}

// sessionStore builds the configured session backend. Without a configured
// secret a random one is used, which logs everybody out on restart.
func (s *Server) sessionStore() (sessions.Store, error) {
	secret := []byte(config.GetSessionSecret())
	if len(secret) == 0 {
		logger.Warning("SESSION_SECRET is not set, using a random key; sessions will not survive a restart")
		secret = random.Bytes(32)
	}

	var store sessions.Store
	switch config.GetSessionStore() {
	case config.SessionStoreRedis:
		client := cache.GetClient()
		if client == nil {
			return nil, common.NewErrorf("%s session store selected but redis is not initialized", config.SessionStoreRedis)
		}
		if cache.IsEmbedded() {
			logger.Warning("REDIS_ADDR is not set, sessions are kept in embedded redis and will not survive a restart")
		}
		store = cache.NewRedisStore(client, secret)
	default:
		store = cookie.NewStore(secret)
	}
	store.Options(session.Options(config.IsSessionSecure()))
	return store, nil
}

// initRouter initializes Gin, registers middleware, templates and
// controllers and returns the configured engine. Redis must already be
// initialized.
func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(config.GetTrustedProxies()); err != nil {
		return nil, err
	}
	if config.IsDebug() {
		engine.Use(gin.Logger())
	}
	engine.Use(gin.Recovery(), middleware.RequestID(), middleware.Metrics())

	// Scraping happens before any session is loaded.
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	store, err := s.sessionStore()
	if err != nil {
		return nil, err
	}
	engine.Use(sessions.Sessions(session.CookieName, store))

	if webDomain := config.GetWebDomain(); webDomain != "" {
		engine.Use(middleware.DomainValidatorMiddleware(webDomain))
	}
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	if err := locale.InitLocalizer(); err != nil {
		return nil, err
	}
	engine.Use(locale.LocalizerMiddleware())

	funcMap := templateFuncs()
	engine.SetFuncMap(funcMap)
	if config.IsDebug() {
		if files, err := s.getHtmlFiles(); err == nil && len(files) > 0 {
			engine.LoadHTMLFiles(files...)
		} else {
			tpl, err := s.getHtmlTemplate(funcMap)
			if err != nil {
				return nil, err
			}
			engine.SetHTMLTemplate(tpl)
		}
	} else {
		tpl, err := s.getHtmlTemplate(funcMap)
		if err != nil {
			return nil, err
		}
		engine.SetHTMLTemplate(tpl)
	}

	idleTimeout := config.GetIdleTimeout()
	engine.Use(middleware.IdleTimeout(middleware.IdleConfig{
		Timeout:     idleTimeout,
		ExemptPaths: []string{sessionStatusPath},
		Now:         s.now,
	}))
	engine.Use(middleware.AuditMiddleware())

	g := engine.Group("/")
	s.index = controller.NewIndexController(g, idleTimeout, s.now)
	s.patient = controller.NewPatientController(g)
	s.account = controller.NewAccountController(g)
	s.doctors = controller.NewDoctorAdminController(g)
	s.logs = controller.NewLogController(g)

	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusNotFound)
	})

	return engine, nil
}

// Start initializes and starts the web server.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	if err = cache.InitRedis(config.GetRedisAddr(), config.GetRedisPassword()); err != nil {
		return err
	}

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	listenAddr := net.JoinHostPort(config.GetListen(), strconv.Itoa(config.GetPort()))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	logger.Info("Web server running HTTP on", listener.Addr())

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		defer common.Recover("web server")
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("web server stopped:", err)
		}
	}()

	return nil
}

// Stop shuts down the web server and releases the Redis client.
func (s *Server) Stop() error {
	s.cancel()
	var err1, err2 error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err1 = s.httpServer.Shutdown(ctx)
	}
	if s.listener != nil {
		// Shutdown already closes the listener.
		if err2 = s.listener.Close(); errors.Is(err2, net.ErrClosed) {
			err2 = nil
		}
	}
	return common.Combine(err1, err2, cache.Close())
}

// GetCtx returns the server's context.
func (s *Server) GetCtx() context.Context { return s.ctx }
