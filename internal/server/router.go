package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/bpmon/internal/client"
	"github.com/loykin/bpmon/internal/metrics"
	"github.com/loykin/bpmon/internal/monitor"
)

// Router provides embeddable HTTP handlers for the monitor manager and for
// direct task/process actions against the upstream.
// Endpoints (under basePath):
//
//	GET    /monitors                  snapshot of all records keyed by id
//	POST   /monitors                  body: {id, kind, interval_seconds}
//	DELETE /monitors/:id
//	PUT    /monitors/:id/interval     body: {interval_seconds}
//	POST   /monitors/:id/check        run one reconciliation cycle now
//	GET    /tasks/:id/variables
//	POST   /tasks/:id/complete        body: {variables}
//	POST   /tasks/:id/abort           body: {reason}
//	POST   /tasks/:id/start
//	POST   /tasks/:id/stop
//	PUT    /tasks/:id/assignee        body: {assignee}
//	POST   /processes/:id/start
//	POST   /processes/:id/stop        body: {reason}
//
// Monitor reconciliation failures are log-only; direct action errors are
// surfaced to the caller including the upstream status and body.
type Router struct {
	mgr      *monitor.Manager
	clients  monitor.ClientFactory
	basePath string
}

// NewRouter constructs a Router with configurable basePath.
// Example basePath: "/api" results in /api/monitors, /api/tasks/:id/...
func NewRouter(mgr *monitor.Manager, clients monitor.ClientFactory, basePath string) *Router {
	return &Router{mgr: mgr, clients: clients, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/monitors", r.handleListMonitors)
	group.POST("/monitors", r.handleAddMonitor)
	group.DELETE("/monitors/:id", r.handleRemoveMonitor)
	group.PUT("/monitors/:id/interval", r.handleUpdateInterval)
	group.POST("/monitors/:id/check", r.handleCheckNow)

	group.GET("/tasks/:id/variables", r.handleTaskVariables)
	group.POST("/tasks/:id/complete", r.handleCompleteTask)
	group.POST("/tasks/:id/abort", r.handleAbortTask)
	group.POST("/tasks/:id/start", r.taskAction(func(cl *client.Client, c *gin.Context, id string) error {
		return cl.StartTask(c.Request.Context(), id)
	}))
	group.POST("/tasks/:id/stop", r.taskAction(func(cl *client.Client, c *gin.Context, id string) error {
		return cl.StopTask(c.Request.Context(), id)
	}))
	group.PUT("/tasks/:id/assignee", r.handleReassignTask)

	group.POST("/processes/:id/start", r.taskAction(func(cl *client.Client, c *gin.Context, id string) error {
		return cl.StartProcess(c.Request.Context(), id)
	}))
	group.POST("/processes/:id/stop", r.handleStopProcess)

	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, mgr *monitor.Manager, clients monitor.ClientFactory) (*http.Server, error) {
	r := NewRouter(mgr, clients, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Monitor handlers ---

type errorResp struct {
	Error string `json:"error"`
	Body  string `json:"upstream_body,omitempty"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type addMonitorReq struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	IntervalSeconds int    `json:"interval_seconds"`
}

type intervalReq struct {
	IntervalSeconds int `json:"interval_seconds"`
}

func (r *Router) handleListMonitors(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.mgr.Serialize())
}

func (r *Router) handleAddMonitor(c *gin.Context) {
	var req addMonitorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if !isSafeID(req.ID) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid id: allowed [A-Za-z0-9._-]"})
		return
	}
	kind := monitor.Kind(req.Kind)
	switch kind {
	case "", monitor.KindTask, monitor.KindDefinition:
	default:
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "kind must be task or definition"})
		return
	}
	rec := r.mgr.AddMonitor(req.ID, kind, req.IntervalSeconds)
	writeJSON(c, http.StatusCreated, rec)
}

func (r *Router) handleRemoveMonitor(c *gin.Context) {
	r.mgr.RemoveMonitor(c.Param("id"))
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleUpdateInterval(c *gin.Context) {
	var req intervalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	rec, ok := r.mgr.UpdateInterval(c.Param("id"), req.IntervalSeconds)
	if !ok {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "monitor not found"})
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

func (r *Router) handleCheckNow(c *gin.Context) {
	rec, ok := r.mgr.CheckNow(c.Request.Context(), c.Param("id"))
	if !ok {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "monitor not found"})
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

// --- Direct upstream actions ---

// taskAction wraps one client call with client lifecycle, error surfacing
// and a best-effort monitor refresh afterwards.
func (r *Router) taskAction(action func(cl *client.Client, c *gin.Context, id string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		cl, err := r.clients()
		if err != nil {
			writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
			return
		}
		defer cl.Close()
		if err := action(cl, c, id); err != nil {
			writeActionError(c, err)
			return
		}
		if _, ok := r.mgr.Get(id); ok {
			_, _ = r.mgr.CheckNow(c.Request.Context(), id)
		}
		writeJSON(c, http.StatusOK, okResp{OK: true})
	}
}

type completeReq struct {
	Variables map[string]string `json:"variables"`
}

func (r *Router) handleCompleteTask(c *gin.Context) {
	var req completeReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
	}
	r.taskAction(func(cl *client.Client, c *gin.Context, id string) error {
		return cl.CompleteTask(c.Request.Context(), id, req.Variables)
	})(c)
}

type reasonReq struct {
	Reason string `json:"reason"`
}

func (r *Router) handleAbortTask(c *gin.Context) {
	var req reasonReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
	}
	r.taskAction(func(cl *client.Client, c *gin.Context, id string) error {
		return cl.AbortTask(c.Request.Context(), id, req.Reason)
	})(c)
}

type assigneeReq struct {
	Assignee string `json:"assignee"`
}

func (r *Router) handleReassignTask(c *gin.Context) {
	var req assigneeReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Assignee == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "assignee required"})
		return
	}
	r.taskAction(func(cl *client.Client, c *gin.Context, id string) error {
		return cl.ReassignTask(c.Request.Context(), id, req.Assignee)
	})(c)
}

func (r *Router) handleStopProcess(c *gin.Context) {
	var req reasonReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
	}
	r.taskAction(func(cl *client.Client, c *gin.Context, id string) error {
		return cl.StopProcess(c.Request.Context(), id, req.Reason)
	})(c)
}

func (r *Router) handleTaskVariables(c *gin.Context) {
	cl, err := r.clients()
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	defer cl.Close()
	vars, err := cl.GetTaskVariables(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeActionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, vars)
}

// writeActionError maps client errors onto HTTP responses. Upstream errors
// pass their status and body through so the UI can surface them.
func writeActionError(c *gin.Context, err error) {
	var ue *client.UpstreamError
	if errors.As(err, &ue) {
		status := ue.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		writeJSON(c, status, errorResp{Error: err.Error(), Body: ue.Body})
		return
	}
	var ae *client.AuthError
	if errors.As(err, &ae) {
		writeJSON(c, http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	var ce *client.ConfigError
	if errors.As(err, &ce) {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusBadGateway, errorResp{Error: err.Error()})
}
