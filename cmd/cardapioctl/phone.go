package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DukeRupert/cardapiofacil/internal/form"
)

// =============================================================================
// PHONE COMMAND - WhatsApp number normalization
// =============================================================================

func newPhoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phone",
		Short: "Format and check WhatsApp numbers the way the signup form does",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:     "format <number>",
			Short:   "Print the number as the form displays it",
			Example: `  cardapioctl phone format 11987654321`,
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), form.FormatWhatsAppNumber(args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:     "prepare <number>",
			Short:   "Print the number as it is sent to the backend services",
			Example: `  cardapioctl phone prepare "(11) 98765-4321"`,
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), form.PrepareWhatsAppNumber(args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "check <number>",
			Short: "Validate the number; exits non-zero when the form would reject it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if msg := form.ValidateWhatsApp(args[0]); msg != "" {
					return errors.New(msg)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", form.PrepareWhatsAppNumber(args[0]))
				return nil
			},
		},
	)

	return cmd
}
