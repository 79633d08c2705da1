package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show enrollment and lockout status",
	Long: `Show whether a face is enrolled, whether verification is locked out and
the most recent verification attempts.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Bool("json", false, "Output as JSON")
}

// statusReport is the JSON form of the status command.
type statusReport struct {
	Backend          string                   `json:"backend"`
	Sealed           bool                     `json:"sealed"`
	Enrolled         bool                     `json:"enrolled"`
	Extractor        string                   `json:"extractor,omitempty"`
	EnrolledAt       *time.Time               `json:"enrolled_at,omitempty"`
	LockedOut        bool                     `json:"locked_out"`
	RemainingMinutes int                      `json:"remaining_minutes"`
	Attempts         []database.AttemptRecord `json:"attempts"`
}

func buildStatusReport(ctx context.Context, store *database.Store, policy database.Policy, now time.Time) (*statusReport, error) {
	report := &statusReport{Backend: store.Backend, Sealed: store.Sealed}

	template, err := database.NewEnrollmentStore(store, time.Now).Load(ctx)
	if err != nil {
		return nil, err
	}
	if template != nil {
		report.Enrolled = true
		report.Extractor = template.Descriptor.Extractor()
		report.EnrolledAt = &template.EnrolledAt
	}

	ledger := database.NewAttemptLedger(store, policy, time.Now)
	records, err := ledger.Records(ctx)
	if err != nil {
		return nil, err
	}
	report.Attempts = records
	report.LockedOut = database.LockedOut(records, now, ledger.Policy())
	report.RemainingMinutes = database.RemainingLockout(records, now, ledger.Policy())
	return report, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	cfg := config.Load()
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := buildStatusReport(ctx, store, ledgerPolicy(cfg), time.Now())
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("Store:    %s", report.Backend)
	if report.Sealed {
		fmt.Print(" (sealed)")
	}
	fmt.Println()

	if report.Enrolled {
		fmt.Printf("Enrolled: yes (%s, %s)\n", report.Extractor, report.EnrolledAt.Local().Format(time.DateTime))
	} else {
		fmt.Println("Enrolled: no")
	}

	if report.LockedOut {
		fmt.Printf("Locked:   yes, %d minute(s) remaining\n", report.RemainingMinutes)
	} else {
		fmt.Println("Locked:   no")
	}

	if len(report.Attempts) == 0 {
		fmt.Println("\nNo verification attempts recorded.")
		return nil
	}
	fmt.Printf("\nRecent attempts (%d):\n", len(report.Attempts))
	for i := len(report.Attempts) - 1; i >= 0; i-- {
		a := report.Attempts[i]
		fmt.Printf("  %s  %s\n", a.Timestamp.Local().Format(time.DateTime), a.Outcome)
	}
	return nil
}
