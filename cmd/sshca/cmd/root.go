// Package cmd implements the sshca CLI commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nmelo/sshca/pkg/kmssign"
	"github.com/nmelo/sshca/pkg/sshca"
)

var (
	// Global flags
	outputFormat string
	keyIDFlag    string
	userFlag     string
	verbose      bool

	// log writes diagnostics to stderr. Debug level requires --verbose.
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sshca",
	Short: "Single-user SSH certificate authority backed by AWS KMS",
	Long: `sshca signs SSH user certificates with an RSA key held in AWS KMS.

The CA private key never leaves KMS: sshca only handles public key
material and certificate bytes, delegating each signature to the KMS
Sign API.

Configuration is read from the environment, optionally loaded from
~/.config/sshca/env:
  SSHCA_KEY_ID    KMS key id, ARN, or alias of the CA key (required)
  SSHCA_USER      default certificate user (falls back to $USER)
  SSHCA_KEY_PATH  public key signed by default
                  (falls back to ~/.ssh/id_ed25519.pub)

AWS credentials and region come from the SDK default chain.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

		// An absent env file is not an error.
		if home, err := os.UserHomeDir(); err == nil {
			envPath := filepath.Join(home, ".config", "sshca", "env")
			if err := godotenv.Load(envPath); err == nil {
				log.Debug().Str("path", envPath).Msg("loaded environment file")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&keyIDFlag, "key-id", "", "KMS key id, ARN, or alias (default $SSHCA_KEY_ID)")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "Certificate user (default $SSHCA_USER, then $USER)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log diagnostics to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// caKeyID resolves the KMS key reference from the flag or environment.
func caKeyID() (string, error) {
	if keyIDFlag != "" {
		return keyIDFlag, nil
	}
	if v := os.Getenv("SSHCA_KEY_ID"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no KMS key configured: set $SSHCA_KEY_ID or pass --key-id")
}

// caUser resolves the certificate user from the flag or environment.
func caUser() (string, error) {
	if userFlag != "" {
		return userFlag, nil
	}
	if v := os.Getenv("SSHCA_USER"); v != "" {
		return v, nil
	}
	if v := os.Getenv("USER"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no user configured: set $SSHCA_USER or pass --user")
}

// openCA fetches the CA public key from KMS and assembles the CA.
// A variable so command tests can substitute a local signer.
var openCA = func(ctx context.Context) (*sshca.CA, *kmssign.Client, error) {
	keyID, err := caKeyID()
	if err != nil {
		return nil, nil, err
	}

	client, err := kmssign.New(ctx, keyID)
	if err != nil {
		return nil, nil, err
	}

	log.Debug().Str("key_id", keyID).Msg("fetching CA public key")
	der, err := client.PublicKeyDER(ctx)
	if err != nil {
		return nil, nil, err
	}

	ca, err := sshca.New(der, client, keyID)
	if err != nil {
		return nil, nil, err
	}
	return ca, client, nil
}

// formatOutput handles output formatting based on the --output flag.
func formatOutput(data interface{}) error {
	switch outputFormat {
	case "json":
		return outputJSON(data)
	case "yaml":
		return outputYAML(data)
	default:
		// Table format is handled by each command
		return nil
	}
}

func outputJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func outputYAML(data interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
