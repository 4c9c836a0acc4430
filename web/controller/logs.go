package controller

import (
	"strconv"

	"github.com/medreg/patient-registry/logger"
	"github.com/medreg/patient-registry/web/middleware"

	"github.com/gin-gonic/gin"
)

const (
	logsPath         = "/admin/logs"
	defaultLogCount  = 100
	maxLogCount      = 2048
	defaultLogsLevel = "info"
)

// LogController shows the most recent entries of the in-memory log buffer.
type LogController struct {
	BaseController
}

// NewLogController creates a new LogController and initializes its routes.
func NewLogController(g *gin.RouterGroup) *LogController {
	a := &LogController{}
	a.initRouter(g)
	return a
}

func (a *LogController) initRouter(g *gin.RouterGroup) {
	g.GET(logsPath, middleware.AdminRequired(), a.getLogs)
}

// getLogs lists up to ?count= entries at or above ?level=, newest first.
func (a *LogController) getLogs(c *gin.Context) {
	count, err := strconv.Atoi(c.Query("count"))
	if err != nil || count <= 0 {
		count = defaultLogCount
	}
	count = min(count, maxLogCount)
	level := c.DefaultQuery("level", defaultLogsLevel)

	html(c, "logs.html", "Logs", gin.H{
		"logs":  logger.GetLogs(count, level),
		"count": count,
		"level": level,
	})
}
