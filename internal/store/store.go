package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Document keys. The registry, leaderboard and series pairing are singletons
// under organization/; each tournament has its own document under
// tournaments/. Backends prefix every key with a configurable root namespace.
const (
	KeyRegistry      = "organization/registry"
	KeyChampionships = "organization/championships"
	KeySeriesTeams   = "organization/seriesTeams"

	tournamentPrefix = "tournaments/t_"
)

func TournamentKey(id string) string {
	return tournamentPrefix + id
}

// TournamentID recovers the tournament id from a document key, if it is one.
func TournamentID(key string) (string, bool) {
	if len(key) <= len(tournamentPrefix) || key[:len(tournamentPrefix)] != tournamentPrefix {
		return "", false
	}
	return key[len(tournamentPrefix):], true
}

// Snapshot is one observed document value. Exists is false when the document
// is absent, in which case Data is nil and the caller applies its empty
// default.
type Snapshot struct {
	Key    string
	Exists bool
	Data   []byte
}

// Store is a key-addressed document store with whole-document overwrite
// semantics. Set always replaces the entire document; there are no
// field-level updates. Implementations can back this with memory, local
// files, or Firestore.
type Store interface {
	// Get reads a document once. An absent document is not an error; it
	// yields a Snapshot with Exists false.
	Get(ctx context.Context, key string) (Snapshot, error)

	// Set overwrites the document with the JSON encoding of value,
	// creating it if absent.
	Set(ctx context.Context, key string, value any) error

	// Delete removes the document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, key string) error

	// List returns the keys of all documents under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Watch subscribes to a document. onChange fires once with the current
	// snapshot and again on every subsequent change, including changes made
	// by this same client. The returned stop function cancels the
	// subscription; no new callbacks start after it returns, though one
	// already in flight may still land. Subscribers that care must check
	// the snapshot key against what they are currently watching.
	Watch(key string, onChange func(Snapshot), onError func(error)) (stop func(), err error)
}
