package api

import (
	"expvar"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

var startRuntime = time.Now()

func setupRouter(r *gin.Engine, uc *Usecase) {
	r.Use(
		gin.CustomRecovery(func(c *gin.Context, err any) {
			slog.ErrorContext(c.Request.Context(), "panic", "err", err, "stack", string(debug.Stack()))
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
		web.Metrics(),
		web.Logger(
			web.IgnoreMethod(http.MethodOptions),
			web.IgnorePrefix("/preview"),
			web.IgnorePrefix("/static/clips"),
		),
	)

	r.Use(cors.New(cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Accept", "Content-Length", "Content-Type", "Range",
			"Origin", "Authorization", "Referer", "User-Agent",
			"Cache-Control", "Pragma", "X-Requested-With",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
		AllowOriginFunc: func(_ string) bool {
			return true
		},
	}))

	if uc.Conf.Server.HTTP.PProf.Enabled {
		web.SetupPProf(r, &uc.Conf.Server.HTTP.PProf.AccessIps)
	}

	r.GET("/health", web.WrapH(uc.getHealth))
	r.GET("/app/metrics/api", web.WrapH(uc.getMetricsAPI))

	RegisterSession(r, uc.SessionAPI)
	RegisterEvent(r, uc.EventAPI, gzip.Gzip(gzip.DefaultCompression))
	RegisterClip(r, uc.ClipAPI)
}

type getHealthOutput struct {
	Version    string    `json:"version"`
	StartAt    time.Time `json:"start_at"`
	CPUPercent float64   `json:"cpu_percent"`
	MemPercent float64   `json:"mem_percent"`
}

func (uc *Usecase) getHealth(_ *gin.Context, _ *struct{}) (getHealthOutput, error) {
	out := getHealthOutput{
		Version: uc.Conf.BuildVersion,
		StartAt: startRuntime,
	}
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		out.CPUPercent = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		out.MemPercent = vm.UsedPercent
	}
	return out, nil
}

type getMetricsAPIOutput struct {
	RealTimeRequests int64  `json:"real_time_requests"`
	TotalRequests    int64  `json:"total_requests"`
	TotalResponses   int64  `json:"total_responses"`
	StartAt          string `json:"start_at"`
}

func (uc *Usecase) getMetricsAPI(_ *gin.Context, _ *struct{}) (*getMetricsAPIOutput, error) {
	out := getMetricsAPIOutput{StartAt: startRuntime.Format(time.DateTime)}
	if v, ok := expvar.Get("request").(*expvar.Int); ok {
		out.RealTimeRequests = v.Value()
	}
	if v, ok := expvar.Get("requests").(*expvar.Int); ok {
		out.TotalRequests = v.Value()
	}
	if v, ok := expvar.Get("responses").(*expvar.Int); ok {
		out.TotalResponses = v.Value()
	}
	return &out, nil
}
