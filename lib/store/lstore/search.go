package lstore

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/ValentinKolb/rDBM/lib/db"
	"github.com/ValentinKolb/rDBM/lib/status"
)

// Search modes
const (
	SearchContain     = "contain"     // keys containing the pattern
	SearchContainCase = "containcase" // keys containing the pattern, ignoring case
	SearchBegin       = "begin"       // keys beginning with the pattern
	SearchEnd         = "end"         // keys ending with the pattern
	SearchRegex       = "regex"       // keys matching the regular expression
	SearchUpper       = "upper"       // keys greater than the pattern, ascending
	SearchUpperInc    = "upperinc"    // keys greater than or equal to the pattern, ascending
	SearchLower       = "lower"       // keys less than the pattern, descending
	SearchLowerInc    = "lowerinc"    // keys less than or equal to the pattern, descending
)

// SearchModes lists all supported modes
var SearchModes = []string{
	SearchContain, SearchContainCase, SearchBegin, SearchEnd, SearchRegex,
	SearchUpper, SearchUpperInc, SearchLower, SearchLowerInc,
}

// collector gathers matched keys up to a capacity (0 = unlimited)
type collector struct {
	capacity int
	keys     [][]byte
}

// add stores a key and reports whether more keys are accepted
func (c *collector) add(key string) bool {
	c.keys = append(c.keys, []byte(key))
	return c.capacity <= 0 || len(c.keys) < c.capacity
}

// scan walks all keys in order and collects the matching ones
func (c *collector) scan(database db.KVDB, match func(key string) bool) {
	database.Ascend("", func(key string, _ []byte) bool {
		if !match(key) {
			return true
		}
		return c.add(key)
	})
}

func search(database db.KVDB, mode string, pattern []byte, capacity int) ([][]byte, error) {
	c := &collector{capacity: capacity}
	p := string(pattern)

	switch mode {
	case SearchContain:
		c.scan(database, func(key string) bool { return strings.Contains(key, p) })

	case SearchContainCase:
		lower := bytes.ToLower(pattern)
		c.scan(database, func(key string) bool {
			return bytes.Contains(bytes.ToLower([]byte(key)), lower)
		})

	case SearchBegin:
		// keys with the prefix are adjacent in key order
		database.Ascend(p, func(key string, _ []byte) bool {
			if !strings.HasPrefix(key, p) {
				return false
			}
			return c.add(key)
		})

	case SearchEnd:
		c.scan(database, func(key string) bool { return strings.HasSuffix(key, p) })

	case SearchRegex:
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, status.Errorf(status.CodeInvalidArgument, "invalid regular expression: %v", err)
		}
		c.scan(database, re.MatchString)

	case SearchUpper, SearchUpperInc:
		inclusive := mode == SearchUpperInc
		for key, _, ok := database.Ceil(p, inclusive); ok; key, _, ok = database.Ceil(key, false) {
			if !c.add(key) {
				break
			}
		}

	case SearchLower, SearchLowerInc:
		inclusive := mode == SearchLowerInc
		for key, _, ok := database.Floor(p, inclusive); ok; key, _, ok = database.Floor(key, false) {
			if !c.add(key) {
				break
			}
		}

	default:
		return nil, status.Errorf(status.CodeInvalidArgument, "unknown mode: %s", mode)
	}

	return c.keys, nil
}
