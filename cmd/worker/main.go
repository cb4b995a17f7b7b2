// Command worker executes a single function file against a JSON input in
// the sandbox, with the same validation and capability gating the server
// applies. It is the development-loop harness for function authors.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/r3e-network/faas-trigger-engine/internal/common/config"
	"github.com/r3e-network/faas-trigger-engine/internal/common/logger"
	"github.com/r3e-network/faas-trigger-engine/internal/sandbox"
	"github.com/r3e-network/faas-trigger-engine/internal/validator"
	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

const (
	exitOK             = 0
	exitConfigError    = 1
	exitStartupFailure = 2
	exitRuntimeFailure = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath, codePath, inputJSON string
	var allowNet, allowEnv bool
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&codePath, "code", "", "path to the function source file")
	flag.StringVar(&inputJSON, "input", "{}", "JSON input passed to the function")
	flag.BoolVar(&allowNet, "allow-net", false, "grant the net permission")
	flag.BoolVar(&allowEnv, "allow-env", false, "grant the env permission")
	flag.Parse()

	if codePath == "" {
		fmt.Fprintln(os.Stderr, "configuration error: -code is required")
		return exitConfigError
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitConfigError
	}

	log, err := logger.New(cfg.Logging, cfg.General.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failure: %v\n", err)
		return exitStartupFailure
	}
	defer log.Sync() //nolint:errcheck

	code, err := os.ReadFile(codePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failure: %v\n", err)
		return exitStartupFailure
	}
	if err := validator.ValidateCode(string(code)); err != nil {
		fmt.Fprintf(os.Stderr, "validation failed: %v\n", err)
		return exitRuntimeFailure
	}

	var input map[string]interface{}
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: invalid -input JSON: %v\n", err)
		return exitConfigError
	}
	if err := validator.ValidateInput(input); err != nil {
		fmt.Fprintf(os.Stderr, "validation failed: %v\n", err)
		return exitRuntimeFailure
	}

	box := sandbox.New(sandbox.Config{
		MaxMemoryMB:        cfg.Runtime.JS.MaxMemoryMB,
		MaxExecutionTimeMs: cfg.Runtime.JS.MaxExecutionTimeMs,
		EnableNetwork:      cfg.Runtime.Sandbox.EnableNetwork,
		EnableEnvironment:  cfg.Runtime.Sandbox.EnableEnvironment,
		AllowedDomains:     cfg.Runtime.Sandbox.AllowedDomains,
	}, log.Named("sandbox"))

	fn := &eventmodel.Function{
		ID:      "local",
		OwnerID: "local",
		Name:    "local-worker-fn",
		Code:    string(code),
		Metadata: eventmodel.FunctionMetadata{
			Version: "0.0.0",
			Permissions: map[eventmodel.Permission]bool{
				eventmodel.PermissionNet: allowNet,
				eventmodel.PermissionEnv: allowEnv,
			},
		},
	}

	out, err := box.Execute(context.Background(), fn, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "execution failed: %v\n", err)
		return exitRuntimeFailure
	}

	for _, line := range out.Logs {
		fmt.Fprintln(os.Stderr, line)
	}
	encoded, err := json.MarshalIndent(out.Result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		return exitRuntimeFailure
	}
	fmt.Println(string(encoded))
	fmt.Fprintf(os.Stderr, "duration: %s\n", out.Duration)
	return exitOK
}
