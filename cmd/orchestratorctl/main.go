// Command orchestratorctl is a thin CLI exercising the Scheduler's HTTP
// surface: submit and stop workloads, register nodes, and check health.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/procflow/control-plane/internal/obs"
)

func main() {
	log := obs.Build(obs.Config{Level: "info", Encoding: "console"})
	defer log.Sync()

	addr := flag.String("addr", "http://localhost:5000", "scheduler base URL")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var err error
	switch args[0] {
	case "submit":
		err = submit(client, *addr, args[1:], log)
	case "list":
		err = list(client, *addr, log)
	case "stop":
		err = stop(client, *addr, args[1:], log)
	case "nodes":
		err = nodes(client, *addr, log)
	case "register":
		err = register(client, *addr, args[1:], log)
	case "health":
		err = health(client, *addr, log)
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `orchestratorctl [-addr http://host:port] <command> [args]

Commands:
  submit <script_path>   submit a workload
  stop <workload_id>     stop a workload
  list                    list tracked workloads
  nodes                   list registered nodes
  register <host> <port>  register a Node Agent
  health                  print the cluster health summary`)
}

func submit(c *http.Client, addr string, args []string, log *zap.Logger) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: submit <script_path>")
	}
	body, _ := json.Marshal(map[string]string{"script_path": args[0]})
	out, err := doJSON(c, http.MethodPost, addr+"/workloads", body)
	if err != nil {
		return err
	}
	log.Info("workload submitted", zap.Any("response", out))
	return nil
}

func stop(c *http.Client, addr string, args []string, log *zap.Logger) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: stop <workload_id>")
	}
	out, err := doJSON(c, http.MethodDelete, addr+"/workloads/"+args[0], nil)
	if err != nil {
		return err
	}
	log.Info("workload stopped", zap.Any("response", out))
	return nil
}

func list(c *http.Client, addr string, log *zap.Logger) error {
	out, err := doJSON(c, http.MethodGet, addr+"/workloads", nil)
	if err != nil {
		return err
	}
	log.Info("workloads", zap.Any("response", out))
	return nil
}

func nodes(c *http.Client, addr string, log *zap.Logger) error {
	out, err := doJSON(c, http.MethodGet, addr+"/nodes", nil)
	if err != nil {
		return err
	}
	log.Info("nodes", zap.Any("response", out))
	return nil
}

func register(c *http.Client, addr string, args []string, log *zap.Logger) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: register <host> <port>")
	}
	var port int
	if _, err := fmt.Sscanf(args[1], "%d", &port); err != nil {
		return fmt.Errorf("invalid port %q: %w", args[1], err)
	}
	body, _ := json.Marshal(map[string]interface{}{"host": args[0], "port": port})
	out, err := doJSON(c, http.MethodPost, addr+"/nodes", body)
	if err != nil {
		return err
	}
	log.Info("node registered", zap.Any("response", out))
	return nil
}

func health(c *http.Client, addr string, log *zap.Logger) error {
	out, err := doJSON(c, http.MethodGet, addr+"/health", nil)
	if err != nil {
		return err
	}
	log.Info("health", zap.Any("response", out))
	return nil
}

func doJSON(c *http.Client, method, url string, body []byte) (map[string]interface{}, error) {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var out map[string]interface{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode >= 400 {
		return out, fmt.Errorf("request failed with status %d: %v", resp.StatusCode, out)
	}
	return out, nil
}
