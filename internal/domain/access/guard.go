package access

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/healthrisk/healthrisk/internal/platform/apperr"
)

type contextKey struct{}

// WithActor returns a context carrying the resolved actor.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFromContext returns the actor resolved for the request, or nil.
func ActorFromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(contextKey{}).(*Actor)
	return a
}

// Guard is what handlers call before touching a protected resource. It
// turns a Decision into the error taxonomy and counts denials.
type Guard struct {
	engine *Engine
	denied *prometheus.CounterVec
}

// NewGuard wires an engine to an optional registerer. A nil registerer
// disables denial metrics.
func NewGuard(engine *Engine, reg prometheus.Registerer) *Guard {
	g := &Guard{engine: engine}
	if reg != nil {
		g.denied = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthrisk",
			Subsystem: "access",
			Name:      "denied_total",
			Help:      "Access policy denials by resource kind, operation and role.",
		}, []string{"kind", "operation", "role"})
		reg.MustRegister(g.denied)
	}
	return g
}

// Check authorizes the context's actor. A missing actor is an
// authentication failure, a policy denial is Forbidden.
func (g *Guard) Check(ctx context.Context, kind Kind, op Operation, res Resource) error {
	actor := ActorFromContext(ctx)
	if actor == nil {
		return apperr.Authentication("actor not resolved")
	}
	d := g.engine.Decide(actor, kind, op, res)
	if d.Allowed {
		return nil
	}
	if g.denied != nil {
		g.denied.WithLabelValues(string(kind), string(op), string(actor.Role)).Inc()
	}
	return apperr.Forbidden(d.Reason)
}
