package modbus

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Group runs one Server per device bank.
type Group struct {
	servers []*Server
}

// StartGroup creates and starts a server for every config concurrently.
// If any listener fails to bind, the ones already started are closed and the
// first error is returned.
func StartGroup(ctx context.Context, cfgs []ServerConfig) (*Group, error) {
	g := &Group{servers: make([]*Server, 0, len(cfgs))}
	for _, cfg := range cfgs {
		srv, err := NewServer(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s server: %w", cfg.Name, err)
		}
		g.servers = append(g.servers, srv)
	}

	// Servers outlive this call, so they get ctx rather than a group context.
	var eg errgroup.Group
	for _, srv := range g.servers {
		eg.Go(func() error {
			return srv.Start(ctx)
		})
	}
	if err := eg.Wait(); err != nil {
		g.Close()
		return nil, err
	}

	return g, nil
}

// Servers returns the running servers in configuration order.
func (g *Group) Servers() []*Server {
	return g.servers
}

// Server returns the server for the named device, or nil.
func (g *Group) Server(name string) *Server {
	for _, s := range g.servers {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// Close stops every server.
func (g *Group) Close() {
	for _, s := range g.servers {
		_ = s.Close()
	}
}
