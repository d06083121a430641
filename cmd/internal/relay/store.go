package relay

// Change describes a single storage mutation observed by a subscriber.
type Change struct {
	Key     string
	Value   string
	Deleted bool
}

// Store is durable per-origin key/value storage with change
// notifications. Set and Del must notify every active subscriber,
// including the one issued by the mutating holder.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Del(key string)

	// Subscribe returns a channel of storage mutations and a cancel
	// function. The channel is closed after cancel returns.
	Subscribe() (<-chan Change, func())
}

// Storage keys shared by all relay clients on one origin.
const (
	// TokenKey holds the plaintext bearer token.
	TokenKey = "auth_token"

	// SnapshotKey holds the minimal session snapshot as JSON.
	SnapshotKey = "auth_session"
)
