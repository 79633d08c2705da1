package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the enrolled face and the attempt history",
	Long: `Remove the enrolled template, its timestamp, the verification attempt
history and the enrolled flag in one atomic step. This also lifts any lockout.

Example:
  facegate reset --yes`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func confirmAction(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func runReset(cmd *cobra.Command, args []string) error {
	skipConfirm := mustGetBool(cmd, "yes")
	cfg := config.Load()
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	machine, err := newMachine(cfg, store)
	if err != nil {
		return err
	}

	enrolled, err := machine.IsEnrolled(ctx)
	if err != nil {
		return fmt.Errorf("failed to read enrollment: %w", err)
	}
	if !enrolled {
		fmt.Println("No face is enrolled, clearing attempt history only.")
	}

	if !skipConfirm && !confirmAction("Remove the enrolled face and all attempt history? [y/N]: ") {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := machine.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}
	fmt.Println("Done! Enrollment and attempt history removed.")
	return nil
}
