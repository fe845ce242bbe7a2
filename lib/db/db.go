package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplTree Implementation = "tree"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet     Feature = 1 << iota // Support for Set operations
	FeatureGet                         // Support for Get operations
	FeatureDelete                      // Support for Delete operations
	FeatureOrdered                     // Support for ordered access (First, Last, Ceil, Floor, Ascend)
	FeatureSave                        // Support for Save operations
	FeatureLoad                        // Support for Load operations
	FeatureCompact                     // Support for Compact operations
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureOrdered:
		return "Ordered"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeatureCompact:
		return "Compact"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	Count             int            `json:"count"`
	SizeBytes         int64          `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for ordered key-value database implementations.
// Keys are compared byte-wise, a Go string is used as an immutable byte sequence.
// Values passed to and returned from the database must not be modified by the caller
// after the call, implementations are free to keep and share them.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry with the given key and value.
	// If the key already exists, the old value is overwritten.
	Set(key string, value []byte)

	// Delete removes an entry with the specified key.
	// The return value reports whether the key existed.
	Delete(key string) (deleted bool)

	// Clear removes all entries.
	Clear()

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool)

	// Count returns the number of entries.
	Count() int

	// SizeBytes returns the summed size of all keys and values.
	SizeBytes() int64

	// --------------------------------------------------------------------------
	// Ordered Access
	// --------------------------------------------------------------------------

	// First returns the entry with the smallest key.
	First() (key string, value []byte, ok bool)

	// Last returns the entry with the largest key.
	Last() (key string, value []byte, ok bool)

	// Ceil returns the first entry with a key greater than (or equal to, if inclusive) the given key.
	Ceil(key string, inclusive bool) (foundKey string, value []byte, ok bool)

	// Floor returns the last entry with a key less than (or equal to, if inclusive) the given key.
	Floor(key string, inclusive bool) (foundKey string, value []byte, ok bool)

	// Ascend calls fn for every entry in key order starting at the given key (inclusive)
	// until fn returns false. An empty key starts at the first entry.
	Ascend(from string, fn func(key string, value []byte) bool)

	// --------------------------------------------------------------------------
	// Maintenance Operations
	// --------------------------------------------------------------------------

	// Removed returns the number of deletions since the last compaction.
	Removed() int

	// Compact rebuilds the internal structure and resets the removal counter.
	Compact()

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	// The current content is replaced.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Returns true if the feature is supported, false otherwise.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}
