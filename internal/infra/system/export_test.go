package system

import (
	"context"
	"net"
)

func (c *Controller) SetRunner(run func(ctx context.Context, argv []string) error) {
	c.run = run
}

func (c *Controller) SetInterfaces(ifaces []net.Interface, addrs map[string][]net.Addr) {
	c.interfaces = func() ([]net.Interface, error) { return ifaces, nil }
	c.addrs = func(i net.Interface) ([]net.Addr, error) { return addrs[i.Name], nil }
}
