package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/r3e-network/faas-trigger-engine/internal/validator"
	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

var validateCmd = &cobra.Command{
	Use:   "validate <code-file> [metadata-file]",
	Short: "Statically validate function code and optional metadata",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := validator.ValidateCode(string(code)); err != nil {
			return fmt.Errorf("code validation failed: %w", err)
		}
		fmt.Println("code: ok")

		if len(args) == 2 {
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var meta eventmodel.FunctionMetadata
			if err := json.Unmarshal(raw, &meta); err != nil {
				return fmt.Errorf("metadata is not valid JSON: %w", err)
			}
			if err := validator.ValidateMetadata(&meta); err != nil {
				return fmt.Errorf("metadata validation failed: %w", err)
			}
			fmt.Println("metadata: ok")
		}
		return nil
	},
}
