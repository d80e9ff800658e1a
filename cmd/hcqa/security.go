package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hcqa/hcqa/internal/platform/security"
)

func securityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "security",
		Short: "Generate keys, passwords and API keys for test environments",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "keygen",
		Short: "Print a new 256-bit encryption key (hex) for ENCRYPTION_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := security.GenerateEncryptionKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	})

	var (
		length int
		hash   bool
	)
	passwordCmd := &cobra.Command{
		Use:   "password",
		Short: "Print a random password with every character class",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.helper()
			if err != nil {
				return err
			}
			pw, err := h.GeneratePassword(length)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pw)
			if hash {
				hashed, err := h.HashPassword(pw)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), hashed)
			}
			return nil
		},
	}
	passwordCmd.Flags().IntVarP(&length, "length", "l", 16, fmt.Sprintf("password length (minimum %d)", security.MinPasswordLength))
	passwordCmd.Flags().BoolVar(&hash, "hash", false, "also print the bcrypt hash")
	cmd.AddCommand(passwordCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "apikey",
		Short: "Print a new API key and its SHA-256 digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.helper()
			if err != nil {
				return err
			}
			key, err := h.GenerateAPIKey()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key:    %s\nsha256: %s\n", key, security.HashAPIKey(key))
			return nil
		},
	})

	return cmd
}

func (a *app) helper() (*security.Helper, error) {
	return security.New(security.Options{EncryptionKey: a.cfg.EncryptionKey, Logger: a.logger})
}
