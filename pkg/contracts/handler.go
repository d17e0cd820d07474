package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

// Handler mounts one domain's routes on the application router.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Pinger is a backing store the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
