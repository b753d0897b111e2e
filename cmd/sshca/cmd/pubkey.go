package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var certAuthority bool

func init() {
	rootCmd.AddCommand(pubkeyCmd)

	pubkeyCmd.Flags().BoolVar(&certAuthority, "cert-authority", false, "Print in authorized_keys cert-authority form")
}

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print the CA public key",
	Long: `Fetch the CA's RSA public key from KMS and print it in SSH format.

The plain form suits sshd_config's TrustedUserCAKeys directive. With
--cert-authority the line is printed in authorized_keys form instead,
accepting only certificates issued to the configured user:

  cert-authority,principals="alice" ssh-rsa AAAA... alias/sshca

Examples:
  sshca pubkey > /etc/ssh/trusted_user_ca
  sshca pubkey --cert-authority >> ~/.ssh/authorized_keys`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ca, client, err := openCA(ctx)
		if err != nil {
			return err
		}

		line := ca.AuthorizedKey()
		if certAuthority {
			user, err := caUser()
			if err != nil {
				return err
			}
			line = ca.CertAuthorityLine(user)
		}

		if outputFormat == "json" || outputFormat == "yaml" {
			return formatOutput(map[string]any{
				"key_id":     client.KeyID(),
				"public_key": line,
			})
		}

		fmt.Fprintln(cmd.OutOrStdout(), line)
		return nil
	},
}
