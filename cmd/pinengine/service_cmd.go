package main

import (
	"flag"
	"fmt"
	"path/filepath"

	"pinengine/cmd/pinengine/service"
)

func runService(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: pinengine service install|uninstall|status [flags]")
	}

	cfg := service.DefaultConfig()
	fs := flag.NewFlagSet("service", flag.ContinueOnError)
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "config file path baked into the unit")
	fs.StringVar(&cfg.User, "user", cfg.User, "user the service runs as")
	fs.StringVar(&cfg.Group, "group", cfg.Group, "supplementary group with GPIO access")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for the pin state database")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	switch args[0] {
	case "install":
		abs, err := filepath.Abs(cfg.ConfigPath)
		if err != nil {
			return err
		}
		cfg.ConfigPath = abs
		if err := service.Install(cfg); err != nil {
			return err
		}
		fmt.Printf("installed and started %s.service\n", cfg.Name)
	case "uninstall":
		if err := service.Uninstall(cfg.Name); err != nil {
			return err
		}
		fmt.Printf("removed %s.service\n", cfg.Name)
	case "status":
		st, err := service.Query(cfg.Name)
		if err != nil {
			return err
		}
		if st.Running {
			fmt.Printf("%s: running (pid %d)\n", cfg.Name, st.PID)
		} else {
			fmt.Printf("%s: not running\n", cfg.Name)
		}
	default:
		return fmt.Errorf("unknown service command %q", args[0])
	}
	return nil
}
