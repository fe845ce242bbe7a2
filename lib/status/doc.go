// Package status defines the unified result type shared by the client, the server
// and the storage layer.
//
// Every operation returns a plain error. A nil error means success, every failure
// is an *Error carrying a Code and an optional message:
//
//	err := dbm.Set([]byte("key"), []byte("value"), false)
//	if errors.Is(err, status.ErrDuplication) {
//		// the key already existed
//	}
//
// The package also maps the two-level outcome of a remote call (transport status
// and embedded application status) onto this single type. A failed transport call
// always becomes a CodeNetwork error whose message is the rendered transport
// status, e.g. "NETWORK_ERROR: DEADLINE_EXCEEDED: context deadline exceeded".
package status
