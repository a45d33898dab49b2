package cmd

import (
	"context"

	"github.com/lepinkainen/ook/internal/server"
)

// ServeCmd serves the JSON API until interrupted
type ServeCmd struct {
	Addr string `help:"Listen address (overrides server.addr)"`
}

func (s *ServeCmd) Run() error {
	return withApp(func(ctx context.Context, a *app) error {
		addr := s.Addr
		if addr == "" {
			addr = a.cfg.Server.Addr
		}
		return server.New(a.store, a.searcher, a.orch).ListenAndServe(ctx, addr)
	})
}
