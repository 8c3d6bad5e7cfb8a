// Package credentials resolves the salted hash of an inbound API key to a
// known credential record (§3.1). The subject resolver performs this
// lookup but does not act on its result: an unknown or disabled key still
// resolves to an API-key subject, and no transport code rejects a request
// on the outcome.
package credentials

import "context"

// APIClient is the credential record behind a registered API key.
type APIClient struct {
	ID      string
	Name    string
	Enabled bool
}

// Store looks up a credential by its salted hash digest.
type Store interface {
	// FindActiveByHash returns the APIClient for hash if one exists and is
	// enabled. The bool result is false both when the hash is unknown and
	// when it belongs to a disabled client; the two cases are not told
	// apart.
	FindActiveByHash(ctx context.Context, hash string) (*APIClient, bool, error)
}

// InMemoryStore is a demo-purposes Store backed by a static set of
// credentials, useful for the demo binary and tests where no credential
// database is wired up.
type InMemoryStore struct {
	known map[string]*APIClient
}

// NewInMemoryStore creates an InMemoryStore pre-populated with clients,
// keyed by their salted hash digest.
func NewInMemoryStore(clients map[string]*APIClient) *InMemoryStore {
	known := make(map[string]*APIClient, len(clients))
	for hash, client := range clients {
		known[hash] = client
	}
	return &InMemoryStore{known: known}
}

// FindActiveByHash looks up hash among the clients registered at
// construction time.
func (s *InMemoryStore) FindActiveByHash(_ context.Context, hash string) (*APIClient, bool, error) {
	client, ok := s.known[hash]
	if !ok || !client.Enabled {
		return nil, false, nil
	}
	return client, true, nil
}
