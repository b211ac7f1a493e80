package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"pinengine/pkg/pinclient"
)

func runCtl(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ctl", flag.ContinueOnError)
	addr := fs.String("addr", envOr("PINENGINE_ADDR", "http://127.0.0.1:8080"), "engine base URL")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return errors.New("usage: pinengine ctl [-addr URL] status|pins|set|read|adc|schedule|blink ...")
	}

	c, err := pinclient.New(*addr, pinclient.WithTimeout(*timeout))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return ctlCommand(ctx, c, rest[0], rest[1:], out)
}

func ctlCommand(ctx context.Context, c *pinclient.Client, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "status":
		st, err := c.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "uptime: %ds\nfree heap: %d\nclients: %d\n", st.Uptime, st.FreeHeap, st.ConnectedClients)
		return nil

	case "pins":
		pins, err := c.Pins(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "GPIO\tSTATE\tMODE\tPENDING\tREVERT AT\tBLINK")
		for _, p := range pins {
			revert := "-"
			if p.RevertAt != nil {
				revert = p.RevertAt.Format(time.RFC3339)
			}
			blink := "-"
			if p.Blinking {
				blink = fmt.Sprintf("%dms", p.BlinkInterval)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", p.GPIO, p.State, dash(p.Mode), dash(p.PendingMode), revert, blink)
		}
		return tw.Flush()

	case "set":
		gpio, state, err := gpioAndState(args, 2)
		if err != nil {
			return err
		}
		res, err := c.SetGPIO(ctx, gpio, state)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "gpio %d: %s\n", res.GPIO, res.State)
		return nil

	case "read", "adc":
		if len(args) != 1 {
			return fmt.Errorf("usage: pinengine ctl %s GPIO", cmd)
		}
		gpio, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("gpio %q: %w", args[0], err)
		}
		if cmd == "read" {
			level, err := c.ReadGPIO(ctx, gpio)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "gpio %d: %s\n", gpio, level)
			return nil
		}
		v, err := c.ReadADC(ctx, gpio)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "gpio %d: %d\n", gpio, v)
		return nil

	case "schedule":
		if len(args) < 3 || len(args) > 4 {
			return errors.New("usage: pinengine ctl schedule GPIO STATE DELAY [DURATION]")
		}
		gpio, state, err := gpioAndState(args[:2], 2)
		if err != nil {
			return err
		}
		delay, err := time.ParseDuration(args[2])
		if err != nil {
			return fmt.Errorf("delay: %w", err)
		}
		var duration time.Duration
		if len(args) == 4 {
			if duration, err = time.ParseDuration(args[3]); err != nil {
				return fmt.Errorf("duration: %w", err)
			}
		}
		if err := c.Schedule(ctx, gpio, state, delay, duration); err != nil {
			return err
		}
		fmt.Fprintf(out, "gpio %d: %s scheduled in %s\n", gpio, state, delay)
		return nil

	case "blink":
		if len(args) != 2 {
			return errors.New("usage: pinengine ctl blink GPIO INTERVAL")
		}
		gpio, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("gpio %q: %w", args[0], err)
		}
		interval, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("interval: %w", err)
		}
		if err := c.Blink(ctx, gpio, interval); err != nil {
			return err
		}
		if interval == 0 {
			fmt.Fprintf(out, "gpio %d: blink stopped\n", gpio)
		} else {
			fmt.Fprintf(out, "gpio %d: blinking every %s\n", gpio, interval)
		}
		return nil
	}
	return fmt.Errorf("unknown ctl command %q", cmd)
}

func gpioAndState(args []string, n int) (int, string, error) {
	if len(args) != n {
		return 0, "", errors.New("expected GPIO STATE")
	}
	gpio, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, "", fmt.Errorf("gpio %q: %w", args[0], err)
	}
	return gpio, args[1], nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
