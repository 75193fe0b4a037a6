package http

import (
	"github.com/nats-io/nats.go"

	"github.com/sztanko/madeira-pass/internal/adapters/postgres"
	"github.com/sztanko/madeira-pass/internal/adapters/valkey"
	"github.com/sztanko/madeira-pass/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers. NATS, DB
// and Cache are optional; handlers and readiness checks treat nil as
// "not configured".
type Dependencies struct {
	Routes    *usecases.RouteService
	Proximity *usecases.ProximityService
	Ledger    *usecases.PassLedger
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache
}
