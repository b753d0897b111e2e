package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"github.com/nmelo/sshca/pkg/sshca"
	"github.com/nmelo/sshca/pkg/store"
)

var (
	signPrincipals   []string
	signExtensions   []string
	signStandard     bool
	signNoPrincipals bool
	signNoExtensions bool
	signValidity     string
	signKeyID        string
	signOutput       string
	signNoHistory    bool
)

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringArrayVarP(&signPrincipals, "principal", "p", nil, "Principal the certificate is valid for (repeatable; default: the configured user)")
	signCmd.Flags().StringArrayVar(&signExtensions, "extension", nil, "Flag extension to grant, e.g. permit-pty (repeatable; default: the standard set)")
	signCmd.Flags().BoolVar(&signStandard, "standard-extensions", false, "Grant the standard OpenSSH user extensions in addition to --extension values")
	signCmd.Flags().BoolVar(&signNoPrincipals, "no-principals", false, "Issue the certificate without principals (valid for any user sshd allows)")
	signCmd.Flags().BoolVar(&signNoExtensions, "no-extensions", false, "Issue the certificate without flag extensions")
	signCmd.Flags().StringVarP(&signValidity, "validity", "v", "24h", "Certificate validity duration (e.g. 90m, 8h, 7d)")
	signCmd.Flags().StringVar(&signKeyID, "cert-key-id", "", "Certificate key_id field (default: the configured user)")
	signCmd.Flags().StringVar(&signOutput, "output-file", "", "Certificate output path, or - for stdout (default: <key>-cert.pub next to the input)")
	signCmd.Flags().BoolVar(&signNoHistory, "no-history", false, "Skip recording the issuance in the local history")
}

var signCmd = &cobra.Command{
	Use:   "sign [pubkey-path]",
	Short: "Sign a public key and write the certificate",
	Long: `Sign an Ed25519 public key with the KMS-held CA key.

The key defaults to $SSHCA_KEY_PATH, then ~/.ssh/id_ed25519.pub. The
certificate is written next to the input as <key>-cert.pub, where the
OpenSSH client picks it up automatically. Nothing is written unless
signing fully succeeds.

The principal and key_id default to the configured user, and the
standard OpenSSH user extensions (permit-pty and friends) are granted,
so a bare "sshca sign" yields a certificate accepted by the line that
"sshca pubkey --cert-authority" prints.

Examples:
  sshca sign
  sshca sign ~/.ssh/id_ed25519.pub
  sshca sign -p alice -p admin -v 8h
  sshca sign --output-file - ~/.ssh/id_ed25519.pub`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSign,
}

func runSign(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		var err error
		path, err = defaultKeyPath()
		if err != nil {
			return err
		}
	}

	outPath := signOutput
	if outPath == "" {
		var err error
		outPath, err = certPath(path)
		if err != nil {
			return err
		}
	}

	validity, err := sshca.ParseDuration(signValidity)
	if err != nil {
		return err
	}

	user, err := caUser()
	if err != nil {
		return err
	}
	keyID := signKeyID
	if keyID == "" {
		keyID = user
	}

	pubKeyData, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}

	principals := certPrincipals(user)
	extensions := certExtensions()

	ca, client, err := openCA(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	opts := sshca.CertOptions{
		KeyID:       keyID,
		Principals:  principals,
		Extensions:  extensions,
		ValidAfter:  now,
		ValidBefore: now.Add(validity),
	}

	log.Debug().
		Str("subject", path).
		Str("key_id", keyID).
		Strs("principals", principals).
		Time("valid_before", opts.ValidBefore).
		Msg("requesting signature")

	certLine, err := ca.SignAuthorizedKey(ctx, pubKeyData, opts)
	if err != nil {
		return fmt.Errorf("failed to sign certificate: %w", err)
	}

	if outPath == "-" {
		fmt.Fprintln(cmd.OutOrStdout(), certLine)
	} else {
		if err := os.WriteFile(outPath, []byte(certLine+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write certificate: %w", err)
		}
	}

	if !signNoHistory {
		recordIssuance(pubKeyData, keyID, opts)
	}

	if outputFormat == "json" || outputFormat == "yaml" {
		return formatOutput(map[string]any{
			"certificate":  certLine,
			"path":         outPath,
			"kms_key":      client.KeyID(),
			"key_id":       keyID,
			"principals":   principals,
			"valid_before": opts.ValidBefore,
		})
	}
	if outPath != "-" {
		fmt.Fprintf(cmd.OutOrStdout(), "Certificate written to %s\n", outPath)
	}
	return nil
}

// certPrincipals resolves the certificate principals: explicit
// --principal values win, otherwise the configured user, so a default
// certificate is accepted by the cert-authority line pubkey prints.
func certPrincipals(user string) []string {
	if signNoPrincipals {
		return nil
	}
	if len(signPrincipals) > 0 {
		return signPrincipals
	}
	return []string{user}
}

// certExtensions resolves the flag extensions. Explicit --extension
// values replace the standard set unless --standard-extensions asks
// for both.
func certExtensions() []string {
	if signNoExtensions {
		return nil
	}
	if len(signExtensions) > 0 {
		if signStandard {
			return append(sshca.StandardExtensions(), signExtensions...)
		}
		return signExtensions
	}
	return sshca.StandardExtensions()
}

// defaultKeyPath resolves the subject key location from the
// environment, falling back to the conventional Ed25519 key.
func defaultKeyPath() (string, error) {
	if v := os.Getenv("SSHCA_KEY_PATH"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate home directory: %w", err)
	}
	return filepath.Join(home, ".ssh", "id_ed25519.pub"), nil
}

// certPath derives the certificate path from the public key path:
// ~/.ssh/id_ed25519.pub becomes ~/.ssh/id_ed25519-cert.pub.
func certPath(keyPath string) (string, error) {
	name := filepath.Base(keyPath)
	stem, ok := strings.CutSuffix(name, ".pub")
	if !ok {
		return "", fmt.Errorf("cannot derive certificate path from %q (no .pub suffix); use --output-file", keyPath)
	}
	return filepath.Join(filepath.Dir(keyPath), stem+"-cert.pub"), nil
}

// recordIssuance appends the certificate to the local history. The
// certificate is already written, so failures only warn.
func recordIssuance(pubKeyData []byte, keyID string, opts sshca.CertOptions) {
	fingerprint := ""
	if pub, _, _, _, err := ssh.ParseAuthorizedKey(pubKeyData); err == nil {
		fingerprint = ssh.FingerprintSHA256(pub)
	}

	s, err := store.Open(store.DefaultPath())
	if err != nil {
		log.Warn().Err(err).Msg("could not open issuance history")
		return
	}
	defer s.Close()

	err = s.Record(&store.Issuance{
		ID:          "crt_" + uuid.New().String()[:8],
		KeyID:       keyID,
		Principals:  opts.Principals,
		Fingerprint: fingerprint,
		ValidAfter:  opts.ValidAfter,
		ValidBefore: opts.ValidBefore,
	})
	if err != nil {
		log.Warn().Err(err).Msg("could not record issuance")
	}
}
