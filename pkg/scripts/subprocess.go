package scripts

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Subprocess is a provider that runs script files from a directory as child
// processes. The resolved parameters reach the process as JSON on stdin and
// in the NODEFLOW_PARAMS environment variable; every stdout and stderr line
// becomes a log message.
type Subprocess struct {
	root string
}

// NewSubprocess creates a provider rooted at the given scripts directory.
func NewSubprocess(root string) *Subprocess {
	return &Subprocess{root: root}
}

// Load verifies the reference names a file under the root and returns a unit
// whose entry point runs it.
func (s *Subprocess) Load(_ context.Context, scriptRef string) (*Unit, error) {
	path, err := s.resolve(scriptRef)
	if err != nil {
		return nil, err
	}

	return &Unit{
		Entry: func(ctx context.Context, params map[string]any, logf LogFunc) error {
			return s.run(ctx, path, params, logf)
		},
	}, nil
}

// resolve maps a reference onto a file path, rejecting escapes from the root.
func (s *Subprocess) resolve(scriptRef string) (string, error) {
	cleaned := filepath.Clean(scriptRef)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: %q escapes the scripts directory", ErrScriptNotFound, scriptRef)
	}

	path := filepath.Join(s.root, cleaned)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %q", ErrScriptNotFound, scriptRef)
	}

	return path, nil
}

func (s *Subprocess) run(ctx context.Context, path string, params map[string]any, logf LogFunc) error {
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}

	cmd := exec.CommandContext(ctx, path)
	cmd.Stdin = strings.NewReader(string(encoded))
	cmd.Env = append(os.Environ(), "NODEFLOW_PARAMS="+string(encoded))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start script: %w", err)
	}

	var wg sync.WaitGroup

	wg.Add(2)

	go forwardLines(&wg, stdout, logf)
	go forwardLines(&wg, stderr, logf)

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("script exited with error: %w", err)
	}

	return nil
}

func forwardLines(wg *sync.WaitGroup, r io.Reader, logf LogFunc) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logf(scanner.Text())
	}
}
