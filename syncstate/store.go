// Package syncstate tracks which (user, access token) pairs have already been
// reported to the backend. Records live for the client session only and are
// never persisted to durable storage.
package syncstate

const keyPrefix = "sync::"

// Key returns the store key for a user's sync record.
func Key(userID string) string {
	return keyPrefix + userID
}

// Store is a session-scoped key-value store. The value under Key(userID) is
// the last access token successfully synced for that user. Implementations
// must be safe for concurrent use; writes are last-write-wins.
type Store interface {
	// Get retrieves the value at key; ok is false when the key is absent.
	Get(key string) (value string, ok bool)

	// Set writes value at key, replacing any previous value.
	Set(key, value string)

	// Clear removes all records, as at the end of a client session.
	Clear()
}
