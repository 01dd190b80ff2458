// Command cardapioctl holds operator tasks for the landing page service:
// database migrations and WhatsApp number checks.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cardapioctl",
		Short:         "Operator tools for the Cardápio Fácil landing page",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newMigrateCmd(), newPhoneCmd())
	return root
}

func main() {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
