// sshca is a single-user SSH certificate authority whose RSA key is
// held in AWS KMS.
package main

import (
	"os"

	"github.com/nmelo/sshca/cmd/sshca/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
