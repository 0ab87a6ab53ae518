package scheduler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/procflow/control-plane/internal/obs"
)

// Server wires the Scheduler and HealthMonitor to the HTTP routes
// names.
type Server struct {
	sched   *Scheduler
	monitor *HealthMonitor
	log     *zap.Logger
}

// NewServer returns a Server ready to be mounted.
func NewServer(s *Scheduler, monitor *HealthMonitor, log *zap.Logger) *Server {
	return &Server{sched: s, monitor: monitor, log: log}
}

// Router builds the chi mux for every route in
func (srv *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Get("/health/summary", srv.handleHealthSummary)
	r.Post("/health/check", srv.handleHealthCheck)
	r.Get("/recovery/metrics", srv.handleRecoveryMetrics)
	r.Get("/nodes", srv.handleListNodes)
	r.Post("/nodes", srv.handleRegisterNode)
	r.Get("/workloads", srv.handleListWorkloads)
	r.Post("/workloads", srv.handleSubmitWorkload)
	r.Delete("/workloads/{id}", srv.handleDeleteWorkload)
	r.Get("/metrics", obs.MetricsHandler().ServeHTTP)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (srv *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	nodes := srv.sched.Nodes()
	var online, offline, degraded, unknown int
	for _, n := range nodes {
		switch n.Status {
		case NodeOnline:
			online++
		case NodeOffline:
			offline++
		case NodeDegraded:
			degraded++
		default:
			unknown++
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"online_nodes":   online,
		"offline_nodes":  offline,
		"degraded_nodes": degraded,
		"unknown_nodes":  unknown,
	})
}

type nodeSummary struct {
	Host                string  `json:"host"`
	Port                int     `json:"port"`
	Status              string  `json:"status"`
	CPUPercent          float64 `json:"cpu_usage"`
	MemoryPercent       float64 `json:"memory_usage"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	LastProbeAt         string  `json:"last_probe_at,omitempty"`
	LastProbeDurationMS float64 `json:"last_probe_duration_ms"`
}

func toNodeSummary(n Node) nodeSummary {
	s := nodeSummary{
		Host:                n.Key.Host,
		Port:                n.Key.Port,
		Status:              string(n.Status),
		CPUPercent:          n.CPUPercent,
		MemoryPercent:       n.MemoryPercent,
		ConsecutiveFailures: n.ConsecutiveFailures,
		LastProbeDurationMS: float64(n.LastProbeDuration) / float64(time.Millisecond),
	}
	if !n.LastProbeAt.IsZero() {
		s.LastProbeAt = n.LastProbeAt.Format(time.RFC3339)
	}
	return s
}

func (srv *Server) handleHealthSummary(w http.ResponseWriter, r *http.Request) {
	nodes := srv.sched.Nodes()
	out := make([]nodeSummary, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, toNodeSummary(n))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": out})
}

func (srv *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	srv.monitor.ForceProbe(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "checked"})
}

func (srv *Server) handleRecoveryMetrics(w http.ResponseWriter, r *http.Request) {
	srv.sched.mu.Lock()
	failedIDs := make([]string, 0, len(srv.sched.failed))
	for id := range srv.sched.failed {
		failedIDs = append(failedIDs, id)
	}
	desiredCount := len(srv.sched.desired)
	srv.sched.mu.Unlock()

	nodes := srv.sched.Nodes()
	nodeDetails := make([]nodeSummary, 0, len(nodes))
	for _, n := range nodes {
		nodeDetails = append(nodeDetails, toNodeSummary(n))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"failed_workloads": failedIDs,
		"desired_count":    desiredCount,
		"nodes":            nodeDetails,
	})
}

func (srv *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes := srv.sched.Nodes()
	out := make([]nodeSummary, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, toNodeSummary(n))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": out})
}

type registerRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (srv *Server) handleRegisterNode(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Host == "" || req.Port == 0 {
		writeError(w, http.StatusBadRequest, "host and port are required")
		return
	}

	key := srv.sched.Register(req.Host, req.Port)
	writeJSON(w, http.StatusOK, map[string]interface{}{"host": key.Host, "port": key.Port})
}

type workloadResponse struct {
	ID          string `json:"id"`
	ScriptPath  string `json:"script_path"`
	Status      string `json:"status"`
	Node        string `json:"node,omitempty"`
	PID         *int   `json:"pid,omitempty"`
	RetryCount  int    `json:"retry_count"`
	SubmittedAt string `json:"submitted_at"`
}

func toWorkloadResponse(w Workload) workloadResponse {
	resp := workloadResponse{
		ID:          w.ID,
		ScriptPath:  w.ScriptPath,
		Status:      string(w.Status),
		RetryCount:  w.RetryCount,
		SubmittedAt: w.SubmittedAt.Format(time.RFC3339),
		PID:         w.PID,
	}
	if w.Node != nil {
		resp.Node = w.Node.String()
	}
	return resp
}

func (srv *Server) handleListWorkloads(w http.ResponseWriter, r *http.Request) {
	workloads := srv.sched.Workloads()
	out := make([]workloadResponse, 0, len(workloads))
	for _, wl := range workloads {
		out = append(out, toWorkloadResponse(wl))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"workloads": out})
}

type submitRequest struct {
	ScriptPath string `json:"script_path"`
}

func (srv *Server) handleSubmitWorkload(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	wl, err := srv.sched.Submit(r.Context(), req.ScriptPath)
	if err != nil {
		srv.log.Warn("workload submission rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"workload_id": wl.ID})
}

func (srv *Server) handleDeleteWorkload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := srv.sched.Stop(r.Context(), id); err != nil {
		if err == ErrUnknownWorkload {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		srv.log.Error("workload stop failed", zap.String("workload", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}
