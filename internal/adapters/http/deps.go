package http

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/wayfinder/internal/adapters/valkey"
	"github.com/samirrijal/wayfinder/internal/core/ports"
	"github.com/samirrijal/wayfinder/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
// NATS, Cache and Feed are optional.
type Dependencies struct {
	Sessions       *usecases.SessionManager
	Search         *usecases.SearchService
	Feed           ports.SessionFeed
	NATS           *nats.Conn
	Cache          *valkey.Cache
	RequestTimeout time.Duration
}

func (d *Dependencies) requestTimeout() time.Duration {
	if d.RequestTimeout > 0 {
		return d.RequestTimeout
	}
	return 15 * time.Second
}
