// Package cmd provides common initialization for the command-line
// applications.
package cmd

import (
	"github.com/nodeflow/nodeflow/pkg/scripts"
)

// NewScriptProvider returns the script provider for a scripts root. An
// empty root yields an empty in-process registry, which rejects every
// script ref; useful for API-only deployments that never execute.
func NewScriptProvider(scriptsPath string) scripts.Provider {
	if scriptsPath == "" {
		return scripts.NewRegistry()
	}

	return scripts.NewSubprocess(scriptsPath)
}
