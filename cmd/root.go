package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facegate",
	Short: "A local face gate with enrollment, verification and lockout",
	Long: `Facegate enrolls a single face from a local camera and later verifies
live captures against it. Repeated failed verifications lock the gate for a
sliding window. Sessions can be driven from this CLI or through the local
HTTP control API started by "facegate serve".`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
