package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"rangeslicer/internal/core/keyspace"
	perr "rangeslicer/internal/platform/errors"
	"rangeslicer/internal/services/slicer/domain"
)

// KeyOptions tunes how a date slice is split by id prefix
type KeyOptions struct {
	Alphabet keyspace.Alphabet
	Ceiling  int64
	MaxDepth int // keys this long are emitted whatever their count, <=0 -> DefaultMaxKeyDepth
	Coalesce bool
}

// DefaultMaxKeyDepth bounds the walk when no depth is configured
const DefaultMaxKeyDepth = 64

// keyFrame is one level of the walk: groups of sibling keys still to visit
type keyFrame struct {
	groups [][]string
	next   int
}

// KeySlicer walks the id prefixes of one date slice depth first and yields groups
// of prefixes whose records fit under the ceiling
type KeySlicer struct {
	opt        KeyOptions
	counter    domain.Counter
	start, end time.Time
	stack      []*keyFrame
	resume     string
}

// NewKeySlicer starts a walk over roots for records in [start, end). Keys at or
// before resumeAfter in walk order are skipped without counting
func NewKeySlicer(opt KeyOptions, counter domain.Counter, start, end time.Time, roots []string, resumeAfter string) *KeySlicer {
	if opt.MaxDepth <= 0 {
		opt.MaxDepth = DefaultMaxKeyDepth
	}
	root := &keyFrame{groups: make([][]string, len(roots))}
	for i, k := range roots {
		root.groups[i] = []string{k}
	}
	return &KeySlicer{
		opt:     opt,
		counter: counter,
		start:   start,
		end:     end,
		stack:   []*keyFrame{root},
		resume:  resumeAfter,
	}
}

// Next returns the next key slice, or false when the walk is over. After an
// error the same group is counted again on the next call
func (k *KeySlicer) Next(ctx context.Context) (domain.KeySlice, bool, error) {
	for len(k.stack) > 0 {
		f := k.stack[len(k.stack)-1]
		if f.next >= len(f.groups) {
			k.stack = k.stack[:len(k.stack)-1]
			continue
		}
		if k.resume != "" {
			k.fastForward(f)
			continue
		}

		g := f.groups[f.next]
		n, err := k.counter.CountKeys(ctx, k.start, k.end, g)
		if err != nil {
			return domain.KeySlice{}, false, perr.Query(err, fingerprint(k.start)+"/"+strings.Join(g, ","))
		}
		f.next++

		if n == 0 {
			continue
		}
		// with no positive ceiling nothing fits, so groups are emitted where they stand
		if n <= k.opt.Ceiling || k.opt.Ceiling <= 0 || k.atMaxDepth(g) {
			return domain.KeySlice{Keys: g, Count: n}, true, nil
		}
		k.push(k.split(g, n))
	}
	return domain.KeySlice{}, false, nil
}

func (k *KeySlicer) atMaxDepth(g []string) bool {
	return utf8.RuneCountInString(g[0]) >= k.opt.MaxDepth
}

func (k *KeySlicer) push(groups [][]string) {
	k.stack = append(k.stack, &keyFrame{groups: groups})
}

// split breaks an oversized group into the groups visited next
func (k *KeySlicer) split(g []string, n int64) [][]string {
	if len(g) > 1 {
		h := len(g) / 2
		return [][]string{g[:h], g[h:]}
	}
	children := k.opt.Alphabet.Children(g[0])
	if !k.opt.Coalesce {
		return singles(children)
	}
	parts := int((n + k.opt.Ceiling - 1) / k.opt.Ceiling)
	parts = min(max(parts, 1), len(children))
	base, rem := len(children)/parts, len(children)%parts
	out := make([][]string, 0, parts)
	at := 0
	for i := range parts {
		size := base
		if i < rem {
			size++
		}
		out = append(out, children[at:at+size])
		at += size
	}
	return out
}

// fastForward consumes the current group of f against the resume key without counting
func (k *KeySlicer) fastForward(f *keyFrame) {
	g := f.groups[f.next]
	a := k.opt.Alphabet
	for i, key := range g {
		switch {
		case strings.HasPrefix(key, k.resume):
			// the resume key itself or below it: already handed out
			continue
		case strings.HasPrefix(k.resume, key):
			f.next++
			groups := singles(a.Children(key))
			if rest := g[i+1:]; len(rest) > 0 {
				groups = append(groups, rest)
			}
			k.push(groups)
			return
		case a.Compare(key, k.resume) < 0:
			continue
		default:
			f.groups[f.next] = g[i:]
			k.resume = ""
			return
		}
	}
	f.next++
}

func singles(keys []string) [][]string {
	out := make([][]string, len(keys))
	for i, key := range keys {
		out[i] = []string{key}
	}
	return out
}
