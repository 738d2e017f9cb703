package payment

import (
	"context"
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// LocalGateway is an in-process stand-in for a hosted checkout provider,
// used for development and tests. Sessions stay unpaid until Pay is called.
type LocalGateway struct {
	baseURL string

	mu       sync.Mutex
	sessions map[string]*GatewaySession
}

func NewLocalGateway(baseURL string) *LocalGateway {
	return &LocalGateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sessions: make(map[string]*GatewaySession),
	}
}

func (g *LocalGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (Checkout, error) {
	id := "cs_local_" + uuid.NewString()

	g.mu.Lock()
	g.sessions[id] = &GatewaySession{ID: id, Metadata: maps.Clone(req.Metadata)}
	g.mu.Unlock()

	return Checkout{ID: id, URL: g.baseURL + "/" + id}, nil
}

func (g *LocalGateway) Retrieve(_ context.Context, sessionID string) (GatewaySession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[sessionID]
	if !ok {
		return GatewaySession{}, ErrUnknownSession
	}
	return GatewaySession{ID: s.ID, Paid: s.Paid, Metadata: maps.Clone(s.Metadata)}, nil
}

// Pay marks the session as paid, as a completed hosted checkout would.
func (g *LocalGateway) Pay(sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[sessionID]
	if !ok {
		return ErrUnknownSession
	}
	s.Paid = true
	return nil
}
