// Package system performs host-level actions: power off, reboot and local
// address lookup.
package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"strings"
)

type Config struct {
	PowerOffCommand string
	RebootCommand   string
	// DryRun logs the commands instead of running them.
	DryRun bool
}

type Controller struct {
	powerOff []string
	reboot   []string
	dryRun   bool
	logger   *slog.Logger

	run        func(ctx context.Context, argv []string) error
	interfaces func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
}

func NewController(cfg Config, logger *slog.Logger) *Controller {
	return &Controller{
		powerOff:   strings.Fields(cfg.PowerOffCommand),
		reboot:     strings.Fields(cfg.RebootCommand),
		dryRun:     cfg.DryRun,
		logger:     logger,
		run:        runCommand,
		interfaces: net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
	}
}

func (c *Controller) PowerOff(ctx context.Context) error {
	return c.exec(ctx, "power off", c.powerOff)
}

func (c *Controller) Reboot(ctx context.Context) error {
	return c.exec(ctx, "reboot", c.reboot)
}

func (c *Controller) exec(ctx context.Context, action string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("%s: no command configured", action)
	}
	if c.dryRun {
		c.logger.Warn("dry run, not executing", "action", action, "command", strings.Join(argv, " "))
		return nil
	}
	c.logger.Info("executing", "action", action, "command", strings.Join(argv, " "))
	if err := c.run(ctx, argv); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

// LocalIP returns the first IPv4 address of an interface that is up and
// not a loopback.
func (c *Controller) LocalIP(_ context.Context) (string, error) {
	ifaces, err := c.interfaces()
	if err != nil {
		return "", fmt.Errorf("listing interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := c.addrs(iface)
		if err != nil {
			c.logger.Debug("reading interface addresses", "interface", iface.Name, "error", err)
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch a := addr.(type) {
			case *net.IPNet:
				ip = a.IP
			case *net.IPAddr:
				ip = a.IP
			}
			if v4 := ip.To4(); v4 != nil && !v4.IsLoopback() && !v4.IsLinkLocalUnicast() {
				return v4.String(), nil
			}
		}
	}
	return "", errors.New("no non-loopback IPv4 address found")
}

func runCommand(ctx context.Context, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
