package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/internal/sandbox"
	"github.com/r3e-network/faas-trigger-engine/internal/validator"
	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

var runInput string
var runAllowNet bool
var runAllowEnv bool

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "{}", "JSON input passed to the function")
	runCmd.Flags().BoolVar(&runAllowNet, "allow-net", false, "grant the net permission")
	runCmd.Flags().BoolVar(&runAllowEnv, "allow-env", false, "grant the env permission")
}

var runCmd = &cobra.Command{
	Use:   "run <code-file>",
	Short: "Execute a function locally in the sandbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		code, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := validator.ValidateCode(string(code)); err != nil {
			return err
		}

		var input map[string]interface{}
		if err := json.Unmarshal([]byte(runInput), &input); err != nil {
			return fmt.Errorf("invalid --input JSON: %w", err)
		}

		box := sandbox.New(sandbox.Config{
			MaxMemoryMB:        cfg.Runtime.JS.MaxMemoryMB,
			MaxExecutionTimeMs: cfg.Runtime.JS.MaxExecutionTimeMs,
			EnableNetwork:      cfg.Runtime.Sandbox.EnableNetwork,
			EnableEnvironment:  cfg.Runtime.Sandbox.EnableEnvironment,
			AllowedDomains:     cfg.Runtime.Sandbox.AllowedDomains,
		}, zap.NewNop())

		fn := &eventmodel.Function{
			ID:      "cli",
			OwnerID: "cli",
			Name:    "cli-run",
			Code:    string(code),
			Metadata: eventmodel.FunctionMetadata{
				Version: "0.0.0",
				Permissions: map[eventmodel.Permission]bool{
					eventmodel.PermissionNet: runAllowNet,
					eventmodel.PermissionEnv: runAllowEnv,
				},
			},
		}

		out, err := box.Execute(context.Background(), fn, input)
		if err != nil {
			return err
		}
		for _, line := range out.Logs {
			fmt.Fprintln(os.Stderr, line)
		}
		encoded, err := json.MarshalIndent(out.Result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	},
}
