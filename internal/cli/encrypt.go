package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/antlu/statusbot/internal/crypto"
)

func newEncryptCmd() *cobra.Command {
	var newKey bool

	cmd := &cobra.Command{
		Use:   "encrypt [value]",
		Short: "Encrypt a secret for the .env file with SB_SECRET_KEY",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if newKey {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), crypto.GenerateKey())
				return err
			}
			if len(args) != 1 {
				return errors.New("a value to encrypt is required")
			}

			_ = godotenv.Load()
			key := os.Getenv("SB_SECRET_KEY")
			if key == "" {
				return errors.New("SB_SECRET_KEY is not set, create one with --new-key")
			}

			cipher, err := crypto.NewCipher(key)
			if err != nil {
				return err
			}
			encrypted, err := cipher.Encrypt(args[0])
			if err != nil {
				return fmt.Errorf("encrypt value: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), encrypted)
			return err
		},
	}

	cmd.Flags().BoolVar(&newKey, "new-key", false, "print a fresh SB_SECRET_KEY instead")
	return cmd
}
