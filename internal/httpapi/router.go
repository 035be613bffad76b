package httpapi

import (
	"github.com/labstack/echo/v4"
)

// Server is the echo instance plus the run handler, so shutdown can wait for
// a background run.
type Server struct {
	*echo.Echo
	Runs *RunHandler
}

// NewServer wires every route. The returned server is not started.
func NewServer(d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	log := d.Log.With().Str("component", "http").Logger()
	e.Use(RequestID(), AccessLog(log), Recover(log), Cors(d.cfg().Serve.CORSOrigins))

	e.GET("/health", HealthHandler{DB: d.DB}.Health)

	// Queue and results
	qh := QueueHandler{CfgVal: d.CfgVal, Catalog: d.Catalog, Log: log}
	e.GET("/emails", qh.Emails)
	e.GET("/opportunities/summary", qh.Summary)
	oh := OpportunitiesHandler{DB: d.DB}
	e.GET("/opportunities", oh.List)

	// Config
	ch := ConfigHandler{CfgVal: d.CfgVal, UserCfgPath: d.UserCfgPath, LoadCfg: d.LoadCfg}
	e.GET("/config", ch.Get)
	e.PUT("/config", ch.Put)
	e.GET("/config/validate", ch.Validate)

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal}
	e.POST("/secrets/:kind", sh.Set)
	e.DELETE("/secrets/:kind", sh.Delete)

	// Pipeline
	rh := &RunHandler{
		CfgVal:  d.CfgVal,
		Hub:     d.Hub,
		Run:     d.Run,
		BaseCtx: d.BaseCtx,
		Log:     log,
	}
	e.GET("/run", rh.Status)
	e.POST("/run", rh.Start)

	// SSE events
	e.GET("/events", EventsHandler{Hub: d.Hub, Log: log}.ServeSSE)

	return &Server{Echo: e, Runs: rh}
}
