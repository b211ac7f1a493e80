package main

import (
	"fmt"
	"os"
	"strings"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	cmd, args := "serve", os.Args[1:]
	if len(os.Args) >= 2 && !strings.HasPrefix(os.Args[1], "-") {
		cmd, args = os.Args[1], os.Args[2:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "resume":
		err = runResume(args)
	case "doctor":
		err = runDoctor(args)
	case "secret":
		err = runSecret(args)
	case "service":
		err = runService(args)
	case "ctl":
		err = runCtl(args, os.Stdout)
	case "version":
		fmt.Println("pinengine", version)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'pinengine --help' for usage information.\n", cmd)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`pinengine - networked GPIO pin operation engine

USAGE:
    pinengine [COMMAND] [FLAGS]

COMMANDS:
    serve       Run the HTTP command surface (default)
    resume      Replay persisted pin states once and exit
    doctor      Run health checks on config, store and driver
    secret      Encrypt a config value: pinengine secret encrypt VALUE
    service     Manage the systemd unit
                Subcommands: install, uninstall, status
    ctl         Drive a running engine over HTTP
                Subcommands: status, pins, set, read, adc, schedule, blink
    version     Print the build version

FLAGS:
    -h, --help         Show this help message
    -config PATH       Config file path (default: ./pinengine.yaml)

CONFIGURATION:
    Config file: ./pinengine.yaml
    Environment: PINENGINE_* variables override config
    PINENGINE_CONFIG_KEY decrypts "enc:" values in the config file

EXAMPLES:
    pinengine                                  # Serve with pinengine.yaml
    pinengine serve -config /etc/pinengine.yaml
    pinengine doctor
    pinengine ctl -addr http://esp32.local:8080 schedule 5 high 1s 500ms
    PINENGINE_CONFIG_KEY=... pinengine secret encrypt my-token`)
}

// configPath resolves the config file from the -config flag value, then
// PINENGINE_CONFIG, then ./pinengine.yaml.
func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv("PINENGINE_CONFIG"); p != "" {
		return p
	}
	return "pinengine.yaml"
}
