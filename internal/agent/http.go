package agent

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/procflow/control-plane/internal/obs"
)

// Server wires the Supervisor and Sampler to the three HTTP routes
// names: GET /status, POST /start, POST /stop.
type Server struct {
	sup     *Supervisor
	sampler *Sampler
	log     *zap.Logger
}

// NewServer returns a Server ready to be mounted.
func NewServer(sup *Supervisor, sampler *Sampler, log *zap.Logger) *Server {
	return &Server{sup: sup, sampler: sampler, log: log}
}

// Router builds the chi mux. Unknown routes 404 by chi's default NotFound
// handler; permissiveCORS wraps every response
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(permissiveCORS)

	r.Get("/status", s.handleStatus)
	r.Post("/start", s.handleStart)
	r.Post("/stop", s.handleStop)
	r.Get("/metrics", obs.MetricsHandler().ServeHTTP)

	return r
}

type statusResponse struct {
	SystemMetrics
	Processes []ProcessRecord `json:"processes"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cpu := s.sampler.CPUPercent()
	memPct, total, avail := s.sampler.MemoryStats()
	procs := s.sup.Snapshot()

	obs.AgentCPUUsage.Set(cpu)
	obs.AgentMemoryUsage.Set(memPct)
	obs.AgentProcessesRunning.Set(float64(len(procs)))

	writeJSON(w, http.StatusOK, statusResponse{
		SystemMetrics: SystemMetrics{
			CPUUsage:         cpu,
			MemoryUsage:      memPct,
			TotalMemory:      total,
			AvailableMemory:  avail,
			RunningProcesses: len(procs),
		},
		Processes: procs,
	})
	obs.AgentRequestsTotal.WithLabelValues("/status", "200").Inc()
}

type startRequest struct {
	ScriptPath string `json:"script_path"`
}

type startResponse struct {
	PID    int    `json:"pid"`
	Status string `json:"status"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		obs.AgentRequestsTotal.WithLabelValues("/start", "400").Inc()
		return
	}

	pid, err := s.sup.Start(req.ScriptPath)
	if err != nil {
		if err == ErrEmptyScriptPath {
			writeError(w, http.StatusBadRequest, err.Error())
			obs.AgentRequestsTotal.WithLabelValues("/start", "400").Inc()
			return
		}
		s.log.Error("start failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		obs.AgentRequestsTotal.WithLabelValues("/start", "500").Inc()
		return
	}

	writeJSON(w, http.StatusOK, startResponse{PID: pid, Status: "started"})
	obs.AgentRequestsTotal.WithLabelValues("/start", "200").Inc()
}

// stopRequest accepts pid as either a JSON number or a numeric string.
type stopRequest struct {
	PID interface{} `json:"pid"`
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		obs.AgentRequestsTotal.WithLabelValues("/stop", "400").Inc()
		return
	}

	pid, ok := parsePID(req.PID)
	if !ok {
		writeError(w, http.StatusBadRequest, "pid must be numeric")
		obs.AgentRequestsTotal.WithLabelValues("/stop", "400").Inc()
		return
	}

	if err := s.sup.Stop(pid); err != nil {
		if err == ErrUnknownPID {
			writeError(w, http.StatusNotFound, err.Error())
			obs.AgentRequestsTotal.WithLabelValues("/stop", "404").Inc()
			return
		}
		s.log.Error("stop failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		obs.AgentRequestsTotal.WithLabelValues("/stop", "500").Inc()
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
	obs.AgentRequestsTotal.WithLabelValues("/stop", "200").Inc()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parsePID accepts a json.Number (sent as a bare JSON number) or a numeric
// string `{pid:int|string}`.
func parsePID(v interface{}) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
