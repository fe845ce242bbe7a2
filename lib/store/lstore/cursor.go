package lstore

import (
	"github.com/ValentinKolb/rDBM/lib/status"
)

// cursor keeps the key of the current record. Records removed or inserted by
// other clients are observed on the next move.
type cursor struct {
	store      *storeImpl
	key        string
	positioned bool
}

func notFound() error {
	return status.NewError(status.CodeNotFound, "")
}

// moveTo positions the cursor at the result of an engine lookup
func (c *cursor) moveTo(key string, _ []byte, ok bool) {
	c.key, c.positioned = key, ok
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store.ICursor)
// --------------------------------------------------------------------------

func (c *cursor) First() error {
	c.moveTo(c.store.db.First())
	return nil
}

func (c *cursor) Last() error {
	c.moveTo(c.store.db.Last())
	return nil
}

func (c *cursor) Jump(key []byte) error {
	c.moveTo(c.store.db.Ceil(string(key), true))
	return nil
}

func (c *cursor) JumpLower(key []byte, inclusive bool) error {
	c.moveTo(c.store.db.Floor(string(key), inclusive))
	return nil
}

func (c *cursor) JumpUpper(key []byte, inclusive bool) error {
	c.moveTo(c.store.db.Ceil(string(key), inclusive))
	return nil
}

func (c *cursor) Next() error {
	if !c.positioned {
		return notFound()
	}
	c.moveTo(c.store.db.Ceil(c.key, false))
	return nil
}

func (c *cursor) Previous() error {
	if !c.positioned {
		return notFound()
	}
	c.moveTo(c.store.db.Floor(c.key, false))
	return nil
}

func (c *cursor) Get() ([]byte, []byte, error) {
	if !c.positioned {
		return nil, nil, notFound()
	}
	// the current record may have been removed meanwhile, continue with its successor
	key, value, ok := c.store.db.Ceil(c.key, true)
	c.moveTo(key, value, ok)
	if !ok {
		return nil, nil, notFound()
	}
	return []byte(key), value, nil
}

func (c *cursor) Set(value []byte) error {
	if !c.positioned {
		return notFound()
	}

	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.db.Get(c.key); !exists {
		return notFound()
	}
	s.setLocked(s.opts.ServerID, c.key, clone(value))
	return nil
}

func (c *cursor) Remove() error {
	if !c.positioned {
		return notFound()
	}

	s := c.store
	s.mu.Lock()
	removed := s.removeLocked(s.opts.ServerID, c.key)
	s.mu.Unlock()

	if !removed {
		return notFound()
	}
	c.moveTo(s.db.Ceil(c.key, false))
	return nil
}
