package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/procflow/control-plane/internal/obs"
)

// startWorkloadRPC calls a Node Agent's POST /start and returns the remote
// PID.
func (s *Scheduler) startWorkloadRPC(ctx context.Context, node NodeKey, scriptPath string) (int, error) {
	start := time.Now()
	defer func() {
		obs.SchedulerRPCDuration.WithLabelValues("start").Observe(time.Since(start).Seconds())
	}()

	body, _ := json.Marshal(map[string]string{"script_path": scriptPath})
	url := fmt.Sprintf("http://%s/start", node.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("node unavailable: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		PID   int    `json:"pid"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("malformed start response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("start rejected: %s", out.Error)
	}
	return out.PID, nil
}

// stopWorkloadRPC calls a Node Agent's POST /stop. Best-effort: callers treat
// an unreachable node the same as a successful stop.
func (s *Scheduler) stopWorkloadRPC(ctx context.Context, node NodeKey, pid int) error {
	start := time.Now()
	defer func() {
		obs.SchedulerRPCDuration.WithLabelValues("stop").Observe(time.Since(start).Seconds())
	}()

	body, _ := json.Marshal(map[string]int{"pid": pid})
	url := fmt.Sprintf("http://%s/stop", node.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("node unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var out struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return fmt.Errorf("stop rejected: %s", out.Error)
	}
	return nil
}
