// Package keyspace describes the record id alphabets a date slice can be split
// over and the depth-first order of their prefixes
package keyspace

import (
	"fmt"
	"slices"
	"strings"

	perr "rangeslicer/internal/platform/errors"
)

// Alphabet names
const (
	Base64URL = "base64url"
	Base64    = "base64"
	Hex       = "hex"
	HexUpper  = "HEX"
)

var alphabets = map[string]string{
	Base64URL: "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_",
	Base64:    "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/",
	Hex:       "0123456789abcdef",
	HexUpper:  "0123456789ABCDEF",
}

// Names lists the known alphabets, sorted
func Names() []string {
	out := make([]string, 0, len(alphabets))
	for k := range alphabets {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Alphabet is an ordered set of key characters
type Alphabet struct {
	name  string
	chars []rune
	rank  map[rune]int
}

// Lookup returns the named alphabet. Names are case sensitive since hex and HEX differ
func Lookup(name string) (Alphabet, error) {
	s, ok := alphabets[name]
	if !ok {
		return Alphabet{}, perr.ConfigKeyf("alphabet", "unknown alphabet %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	a := Alphabet{name: name, chars: []rune(s), rank: make(map[rune]int, len(s))}
	for i, r := range a.chars {
		a.rank[r] = i
	}
	return a, nil
}

// MustLookup is Lookup for names known at compile time
func MustLookup(name string) Alphabet {
	a, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Alphabet) Name() string { return a.name }
func (a Alphabet) Size() int    { return len(a.chars) }

// Valid reports whether every character of key belongs to the alphabet
func (a Alphabet) Valid(key string) bool {
	for _, r := range key {
		if _, ok := a.rank[r]; !ok {
			return false
		}
	}
	return true
}

// Children returns prefix extended by every character, in alphabet order
func (a Alphabet) Children(prefix string) []string {
	out := make([]string, len(a.chars))
	for i, r := range a.chars {
		out[i] = prefix + string(r)
	}
	return out
}

// Compare orders keys as a depth-first walk visits them: character by character
// in alphabet order, a prefix before its extensions
func (a Alphabet) Compare(x, y string) int {
	xr, yr := []rune(x), []rune(y)
	for i := 0; i < len(xr) && i < len(yr); i++ {
		if xr[i] == yr[i] {
			continue
		}
		if a.rank[xr[i]] < a.rank[yr[i]] {
			return -1
		}
		return 1
	}
	switch {
	case len(xr) < len(yr):
		return -1
	case len(xr) > len(yr):
		return 1
	}
	return 0
}

// CheckWorkers fails when the alphabet cannot give every worker a starting key
func (a Alphabet) CheckWorkers(n int) error {
	if n < 1 || n > a.Size() {
		return perr.ConfigKeyf("workers", "%d workers cannot share the %d-character %s alphabet", n, a.Size(), a.name)
	}
	return nil
}

// Share returns the contiguous run of single characters worker id of n starts from.
// The first size%n workers get one extra character
func (a Alphabet) Share(n, id int) []string {
	if n < 1 || id < 0 || id >= n || n > a.Size() {
		panic(fmt.Sprintf("keyspace: worker %d of %d over %d characters", id, n, a.Size()))
	}
	base, rem := a.Size()/n, a.Size()%n
	first := id*base + min(id, rem)
	size := base
	if id < rem {
		size++
	}
	out := make([]string, size)
	for i := range size {
		out[i] = string(a.chars[first+i])
	}
	return out
}

// Expand replaces every key by its descendants depth levels down
func (a Alphabet) Expand(keys []string, depth int) []string {
	for range depth {
		next := make([]string, 0, len(keys)*a.Size())
		for _, k := range keys {
			next = append(next, a.Children(k)...)
		}
		keys = next
	}
	return keys
}

// StartKeys is Share expanded by depth
func (a Alphabet) StartKeys(n, id, depth int) []string {
	return a.Expand(a.Share(n, id), depth)
}
