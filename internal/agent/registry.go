package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inkwell/inkwell/internal/chat"
)

// Status describes one conversation's agent lifecycle state.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusConnecting   Status = "connecting"
	StatusDisconnected Status = "disconnected"
)

// Service is the lifecycle surface consumed by the HTTP layer.
type Service interface {
	Start(ctx context.Context, conversationID string) error
	Stop(ctx context.Context, conversationID string) error
	Status(conversationID string) Status
}

// Factory builds an agent for one conversation. It runs outside the
// registry lock, so it may do I/O and fail.
type Factory func(conversationID string) (*Agent, error)

// Registry tracks at most one live agent per conversation. A pending marker
// dedupes concurrent starts without holding the lock across the join and
// construction I/O.
type Registry struct {
	transport chat.Transport
	factory   Factory

	mu      sync.Mutex
	agents  map[string]*Agent
	pending map[string]struct{}
}

func NewRegistry(transport chat.Transport, factory Factory) *Registry {
	return &Registry{
		transport: transport,
		factory:   factory,
		agents:    make(map[string]*Agent),
		pending:   make(map[string]struct{}),
	}
}

// Start brings up an agent for the conversation. Calls for a conversation
// that is already live or mid-startup are no-ops.
func (r *Registry) Start(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	if _, live := r.agents[conversationID]; live {
		r.mu.Unlock()
		return nil
	}
	if _, starting := r.pending[conversationID]; starting {
		r.mu.Unlock()
		return nil
	}
	r.pending[conversationID] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, conversationID)
		r.mu.Unlock()
	}()

	if err := r.transport.Join(ctx, conversationID); err != nil {
		return fmt.Errorf("join conversation %s: %w", conversationID, err)
	}
	ag, err := r.factory(conversationID)
	if err != nil {
		return fmt.Errorf("start agent for %s: %w", conversationID, err)
	}

	r.mu.Lock()
	if _, live := r.agents[conversationID]; live {
		r.mu.Unlock()
		// Lost the install race; dispose the redundant instance without
		// leaving the conversation the winner still serves.
		ag.discard()
		return nil
	}
	r.agents[conversationID] = ag
	r.mu.Unlock()

	slog.Info("agent started", "conversation", conversationID)
	return nil
}

// Stop tears down the conversation's agent, if any.
func (r *Registry) Stop(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	ag, ok := r.agents[conversationID]
	if ok {
		delete(r.agents, conversationID)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	slog.Info("agent stopped", "conversation", conversationID)
	return ag.Close()
}

// Status reports the lifecycle state of one conversation.
func (r *Registry) Status(conversationID string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[conversationID]; ok {
		return StatusConnected
	}
	if _, ok := r.pending[conversationID]; ok {
		return StatusConnecting
	}
	return StatusDisconnected
}

// Sweep closes agents whose last inbound message is older than idleAfter and
// returns how many were evicted.
func (r *Registry) Sweep(idleAfter time.Duration) int {
	cutoff := time.Now().Add(-idleAfter)

	r.mu.Lock()
	var expired []*Agent
	for id, ag := range r.agents {
		if ag.LastActive().Before(cutoff) {
			expired = append(expired, ag)
			delete(r.agents, id)
		}
	}
	r.mu.Unlock()

	for _, ag := range expired {
		slog.Info("agent evicted after idle timeout", "conversation", ag.ConversationID())
		_ = ag.Close()
	}
	return len(expired)
}

// Close stops every live agent. Used on process shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	agents := make([]*Agent, 0, len(r.agents))
	for id, ag := range r.agents {
		agents = append(agents, ag)
		delete(r.agents, id)
	}
	r.mu.Unlock()
	for _, ag := range agents {
		_ = ag.Close()
	}
}

var _ Service = (*Registry)(nil)
