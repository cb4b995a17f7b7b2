package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/internal/threatdetector"
)

var scanCmd = &cobra.Command{
	Use:   "scan <code-file>",
	Short: "Scan function code for suspicious, scanning and mining patterns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		detector := threatdetector.New(threatdetector.DefaultConfig(), zap.NewNop())
		events := detector.ScanCode("cli", args[0], string(code), time.Now())
		if len(events) == 0 {
			fmt.Println("no threats detected")
			return nil
		}
		for _, e := range events {
			fmt.Printf("%s [%s] %s\n", e.Kind, e.Severity, e.Detail)
		}
		return fmt.Errorf("%d threat(s) detected", len(events))
	},
}
