package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/gate"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll the face in front of the camera",
	Long: `Capture the face in front of the camera and store it as the enrolled
template, replacing any previous enrollment. The template is the average of
several capture rounds (FACEGATE_ENROLL_ROUNDS, default 3).

Exits with status 1 unless enrollment succeeds.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGateSession(cmd, gate.Enrollment)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the face in front of the camera",
	Long: `Capture the face in front of the camera and compare it with the enrolled
template. Every verification is recorded; repeated failures lock the gate.

Exits with status 1 unless the face matches.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGateSession(cmd, gate.Verification)
	},
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(verifyCmd)

	for _, c := range []*cobra.Command{enrollCmd, verifyCmd} {
		c.Flags().Bool("json", false, "Print state events as JSON lines instead of a progress bar")
	}
}

// sessionView renders machine events on the terminal.
type sessionView struct {
	jsonOutput bool
	bar        *progressbar.ProgressBar
	round      int
}

func (v *sessionView) show(ev gate.Event) {
	if v.jsonOutput {
		if ev.Kind == gate.EventState {
			data, _ := json.Marshal(ev)
			fmt.Println(string(data))
		}
		return
	}

	switch {
	case ev.Kind == gate.EventProgress:
		if v.bar != nil {
			_ = v.bar.Set(ev.Progress)
		}
	case ev.State == gate.Capturing && ev.Round != v.round:
		v.finishBar()
		v.round = ev.Round
		v.bar = newScanBar(ev.Round, ev.Rounds)
	case ev.State == gate.RequestingResource:
		fmt.Println("Waiting for the camera...")
	case ev.State == gate.Analyzing:
		v.finishBar()
	}
}

func (v *sessionView) finishBar() {
	if v.bar != nil {
		_ = v.bar.Finish()
		fmt.Println()
		v.bar = nil
	}
}

func newScanBar(round, rounds int) *progressbar.ProgressBar {
	description := "Scanning"
	if rounds > 1 {
		description = fmt.Sprintf("Scanning (%d/%d)", round, rounds)
	}
	return progressbar.NewOptions(constants.MaxProgress,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
}

func runGateSession(cmd *cobra.Command, mode gate.Mode) error {
	jsonOutput := mustGetBool(cmd, "json")
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	machine, err := newMachine(cfg, store)
	if err != nil {
		return err
	}

	events := machine.Subscribe()
	defer machine.Unsubscribe(events)

	if err := machine.Start(ctx, mode); err != nil {
		return fmt.Errorf("failed to start %s session: %w", mode, err)
	}
	done := machine.Done()

	view := &sessionView{jsonOutput: jsonOutput}
	interrupted := ctx.Done()
	for finished := false; !finished; {
		select {
		case <-interrupted:
			fmt.Fprintln(os.Stderr, "\nCancelling...")
			interrupted = nil
			machine.Cancel()
		case ev := <-events:
			view.show(ev)
		case <-done:
			finished = true
		}
	}
	// Deliver what was queued before the session ended.
	for drained := false; !drained; {
		select {
		case ev := <-events:
			view.show(ev)
		default:
			drained = true
		}
	}
	view.finishBar()

	return reportOutcome(mode, machine.Snapshot(), jsonOutput)
}

// reportOutcome prints the final state and returns an error for anything but
// success so the process exits with status 1.
func reportOutcome(mode gate.Mode, final gate.Event, jsonOutput bool) error {
	if final.State == gate.Succeeded {
		if !jsonOutput {
			if mode == gate.Enrollment {
				fmt.Println("Face enrolled.")
			} else {
				fmt.Println("Face verified. Access granted.")
			}
		}
		return nil
	}

	if !jsonOutput {
		fmt.Printf("Result: %s\n", final.State)
		if final.Reason != "" {
			fmt.Printf("Reason: %s\n", final.Reason)
		}
		if final.Guidance != "" {
			fmt.Println(final.Guidance)
		}
		if gate.Retryable(final.State) {
			fmt.Printf("Run \"facegate %s\" to try again.\n", mode)
		}
	}
	return fmt.Errorf("%s ended in state %s", mode, final.State)
}
