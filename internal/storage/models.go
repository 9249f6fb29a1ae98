package storage

// Well-known keys.
const (
	FilterSelectionKey = "fio-dashboard:filters"
	AuthTokenKey       = "fio-dashboard:auth-token"
)

type Backend string

const (
	BackendPebble Backend = "pebble"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
	BackendMemory Backend = "memory"
)

func (b Backend) Valid() bool {
	switch b {
	case BackendPebble, BackendSQLite, BackendRedis, BackendMemory:
		return true
	}
	return false
}
