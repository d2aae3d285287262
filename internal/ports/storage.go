package ports

// StoragePort is a versioned key-value store. Every key carries a
// monotonically increasing version; Put is a compare-and-swap against
// the version the caller last observed, so read-modify-write sequences
// inside RunInTransaction are linearizable per key.
type StoragePort interface {
	Get(key string) (value []byte, version int64, exists bool, err error)

	// Put writes value if the key's current version equals version
	// (0 for a key that must not exist yet). A mismatch fails with a
	// conflict error and the stored version advances by one on success.
	Put(key string, value []byte, version int64) error

	Delete(key string) error
	Exists(key string) (bool, error)

	ListByPrefix(prefix string) ([]KeyValueVersion, error)
	GetNext(prefix string) (key string, value []byte, exists bool, err error)
	CountPrefix(prefix string) (int, error)

	// RunInTransaction executes fn atomically. Reads observe a
	// consistent snapshot; a write race with a concurrent transaction
	// fails the whole transaction with a conflict error.
	RunInTransaction(fn func(tx Transaction) error) error

	Close() error
}

// Transaction is the scope handed to RunInTransaction callbacks.
type Transaction interface {
	Get(key string) (value []byte, version int64, exists bool, err error)
	Put(key string, value []byte, version int64) error
	Delete(key string) error
	Exists(key string) (bool, error)
	ListByPrefix(prefix string) ([]KeyValueVersion, error)
}

type KeyValueVersion struct {
	Key     string
	Value   []byte
	Version int64
}
