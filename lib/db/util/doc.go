// Package util provides small helpers shared by the database packages and
// the command line.
//
// The package contains:
//   - functions: HashString, a seeded FNV-1a hash used to derive numeric
//     identifiers (such as server ids) from names
package util
