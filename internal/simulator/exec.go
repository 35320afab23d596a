package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// maxStderr bounds how much of a failing process's stderr is kept.
const maxStderr = 4096

// Exec runs an external program once per request. The request is written to
// its stdin as JSON and a response is read from its stdout:
//
//	{"fluxes": {"Kepler": [...], ...}, "derived": {...}}
//	{"error": {"kind": "out_of_coverage", "message": "..."}}
//
// A non-zero exit status is reported as a transient error. An error kind
// other than out_of_coverage or transient is fatal.
type Exec struct {
	// Command is the program and its arguments.
	Command []string

	// Dir is the working directory; empty means the current one.
	Dir string

	// Env is appended to the inherited environment.
	Env []string
}

type execResponse struct {
	Result
	Error *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Simulate runs the command for req.
func (e *Exec) Simulate(ctx context.Context, req Request) (*Result, error) {
	if len(e.Command) == 0 {
		return nil, errors.New("simulator command is empty")
	}

	input, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode simulator request: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.Command[0], e.Command[1:]...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, Transient(fmt.Sprintf("node %d: %s", req.NodeID, tail(stderr.String())), err)
		}
		return nil, fmt.Errorf("run simulator: %w", err)
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode simulator response for node %d: %w", req.NodeID, err)
	}

	if resp.Error != nil {
		switch ErrorKind(resp.Error.Kind) {
		case KindOutOfCoverage:
			return nil, OutOfCoverage(resp.Error.Message)
		case KindTransient:
			return nil, Transient(resp.Error.Message, nil)
		default:
			return nil, fmt.Errorf("simulator failed on node %d (%s): %s", req.NodeID, resp.Error.Kind, resp.Error.Message)
		}
	}

	res := resp.Result
	if err := Check(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = s[len(s)-maxStderr:]
	}
	if s == "" {
		return "exited with error"
	}
	return s
}
