package main

import (
	"fmt"
	"os"
	"strings"

	"pinengine/internal/infra/config"
)

// runSecret encrypts or decrypts a single config value with
// PINENGINE_CONFIG_KEY so tokens can be stored as "enc:..." in the file.
func runSecret(args []string) error {
	if len(args) != 2 || (args[0] != "encrypt" && args[0] != "decrypt") {
		return fmt.Errorf("usage: pinengine secret encrypt|decrypt VALUE")
	}
	passphrase := os.Getenv("PINENGINE_CONFIG_KEY")
	if passphrase == "" {
		return fmt.Errorf("PINENGINE_CONFIG_KEY is not set")
	}

	var (
		out string
		err error
	)
	if args[0] == "encrypt" {
		out, err = config.EncryptValue(args[1], passphrase)
		out = "enc:" + out
	} else {
		out, err = config.DecryptValue(strings.TrimPrefix(args[1], "enc:"), passphrase)
	}
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
