// Package main provides a desktop notification plugin for posture alerts.
// It uses osascript on macOS and notify-send on Linux.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action     string          `json:"action"`
	Label      string          `json:"label"`
	Previous   string          `json:"previous"`
	Confidence float64         `json:"confidence"`
	Config     json.RawMessage `json:"config"`
	Params     json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type config struct {
	Title string `json:"title"`
	Sound string `json:"sound"`
}

type params struct {
	// DryRun builds the notification without showing it.
	DryRun bool `json:"dry_run"`
}

type notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

var advice = map[string]string{
	"Lean":   "You are leaning to one side. Straighten up.",
	"Slouch": "You are slouching. Sit up and pull your shoulders back.",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Action != "alert" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	var cfg config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}
	if cfg.Title == "" {
		cfg.Title = "Posture check"
	}

	var p params
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid params: %v", err))
			return
		}
	}

	n := build(cfg, req)
	if !p.DryRun {
		if err := show(n, cfg.Sound); err != nil {
			writeErrorResponse(fmt.Sprintf("notification failed: %v", err))
			return
		}
	}

	data, _ := json.Marshal(n)
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}

func build(cfg config, req Request) notification {
	msg, ok := advice[req.Label]
	if !ok {
		msg = "Posture changed to " + req.Label + "."
	}
	return notification{
		Title:   cfg.Title,
		Message: fmt.Sprintf("%s (%.0f%% sure)", msg, req.Confidence*100),
	}
}

func show(n notification, sound string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", n.Message, n.Title)
		if sound != "" {
			script += fmt.Sprintf(" sound name %q", sound)
		}
		cmd = exec.Command("osascript", "-e", script)
	case "linux":
		cmd = exec.Command("notify-send", "--app-name=posture", n.Title, n.Message)
	default:
		return errors.New("unsupported platform " + runtime.GOOS)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}
