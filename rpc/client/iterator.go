package client

import (
	"github.com/ValentinKolb/rDBM/rpc/common"
)

// Iterator is a cursor kept by the server over the keys of the selected
// database, in ascending order. The position is not cached by the client.
// An Iterator must not be used by several goroutines at once, except for Cancel.
type Iterator struct {
	duplex
}

// MakeIterator opens an iterator. If the session is not connected the
// iterator is unhealthy and every operation fails with a precondition error.
func (d *RemoteDBM) MakeIterator() *Iterator {
	it := &Iterator{}
	it.open("iterator", common.MethodIterate, d)
	return it
}

// Close half-closes a healthy iterator, waits for the server and releases the handle
func (it *Iterator) Close() error {
	return it.release(it.closeSend)
}

// do sends one cursor operation and returns the response
func (it *Iterator) do(req common.IterateRequest) (*common.IterateResponse, error) {
	resp := &common.IterateResponse{}
	err := it.roundTrip(func(idx int32) any {
		req.DBMIndex = idx
		return &req
	}, resp)
	if err != nil {
		return nil, err
	}
	return resp, resp.Status.Err()
}

func (it *Iterator) move(req common.IterateRequest) error {
	_, err := it.do(req)
	return err
}

// First moves to the first record
func (it *Iterator) First() error {
	return it.move(common.IterateRequest{Operation: common.IterateOpFirst})
}

// Last moves to the last record
func (it *Iterator) Last() error {
	return it.move(common.IterateRequest{Operation: common.IterateOpLast})
}

// Jump moves to the first record whose key is equal to or greater than key
func (it *Iterator) Jump(key []byte) error {
	return it.move(common.IterateRequest{Operation: common.IterateOpJump, Key: key})
}

// JumpLower moves to the last record whose key is less than key, or equal if inclusive
func (it *Iterator) JumpLower(key []byte, inclusive bool) error {
	return it.move(common.IterateRequest{Operation: common.IterateOpJumpLower, Key: key, JumpInclusive: inclusive})
}

// JumpUpper moves to the first record whose key is greater than key, or equal if inclusive
func (it *Iterator) JumpUpper(key []byte, inclusive bool) error {
	return it.move(common.IterateRequest{Operation: common.IterateOpJumpUpper, Key: key, JumpInclusive: inclusive})
}

// Next moves to the next record. It fails with NOT_FOUND if the iterator is
// not positioned.
func (it *Iterator) Next() error {
	return it.move(common.IterateRequest{Operation: common.IterateOpNext})
}

// Previous moves to the previous record. It fails with NOT_FOUND if the
// iterator is not positioned.
func (it *Iterator) Previous() error {
	return it.move(common.IterateRequest{Operation: common.IterateOpPrevious})
}

// Get returns the current record. Key or value are left out of the response
// (and returned as nil) if they are not wanted. Past the last record the
// status is NOT_FOUND.
func (it *Iterator) Get(wantKey, wantValue bool) (key, value []byte, err error) {
	resp, err := it.do(common.IterateRequest{
		Operation: common.IterateOpGet,
		OmitKey:   !wantKey,
		OmitValue: !wantValue,
	})
	if err != nil {
		return nil, nil, err
	}
	if wantKey {
		key = nonNil(resp.Key)
	}
	if wantValue {
		value = nonNil(resp.Value)
	}
	return key, value, nil
}

// Set replaces the value of the current record
func (it *Iterator) Set(value []byte) error {
	return it.move(common.IterateRequest{Operation: common.IterateOpSet, Value: value})
}

// Remove removes the current record. The iterator then points to the record
// after the removed one.
func (it *Iterator) Remove() error {
	return it.move(common.IterateRequest{Operation: common.IterateOpRemove})
}
