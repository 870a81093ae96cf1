package ports

// KVStore is synchronous string-blob persistence. Implementations must
// survive process restarts; the registry and the connection manager keep
// all of their durable state behind this interface.
type KVStore interface {
	// Get returns the stored value and whether the key exists
	Get(key string) (string, bool)

	// Set stores a value under key
	Set(key, value string) error

	// Delete removes a key; deleting a missing key is not an error
	Delete(key string) error
}
