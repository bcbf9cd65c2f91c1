// Package runtime owns the live-connection state and the fan-out engine.
// It routes events without containing transport or storage concerns.
package runtime

import (
	"sync"

	"chat-relay/contract"
)

// Registry is the presence map: one live sink per user identity.
// It is the only shared mutable structure in the process; connect and
// disconnect handlers mutate it, send handlers read it, all under the mutex.
type Registry struct {
	mu       sync.RWMutex
	Sessions map[string]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{
		Sessions: make(map[string]contract.EventSink),
	}
}

// Register binds a user to a live connection. A reconnect for the same user
// overwrites the stale entry: last-connected-wins, no multi-device fan-out.
func (r *Registry) Register(userID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Sessions[userID] = sink
}

// Lookup resolves a user to their live sink. A missing entry means
// "deliver nothing", never a failure.
func (r *Registry) Lookup(userID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, ok := r.Sessions[userID]
	return sink, ok
}

// Unregister removes the entry holding this exact handle. Called once per
// connection close; calling it again, or after the user reconnected with a
// fresh handle, removes nothing. Linear in connected users, not in message
// volume.
func (r *Registry) Unregister(sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, registered := range r.Sessions {
		if registered == sink {
			delete(r.Sessions, userID)
			return
		}
	}
}
