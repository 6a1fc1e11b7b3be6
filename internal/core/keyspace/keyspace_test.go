package keyspace

import (
	"slices"
	"strings"
	"testing"

	perr "rangeslicer/internal/platform/errors"
	kit "rangeslicer/internal/platform/testkit"
)

func TestLookup(t *testing.T) {
	for name, size := range map[string]int{Base64URL: 64, Base64: 64, Hex: 16, HexUpper: 16} {
		a, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		if a.Size() != size || a.Name() != name {
			t.Fatalf("%s: size %d, want %d", name, a.Size(), size)
		}
	}
	if _, err := Lookup("base32"); !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("unknown alphabet err = %v", err)
	}
	if !MustLookup(Hex).Valid("0af9") || MustLookup(Hex).Valid("0AF9") {
		t.Fatalf("hex is lower case only")
	}
}

func TestCompareIsPreorder(t *testing.T) {
	a := MustLookup(Hex)
	keys := []string{"1", "0f", "10", "0", "00", "f", "0ff", "a"}
	slices.SortFunc(keys, a.Compare)
	want := []string{"0", "00", "0f", "0ff", "1", "10", "a", "f"}
	if !slices.Equal(keys, want) {
		t.Fatalf("order = %v, want %v", keys, want)
	}

	b := MustLookup(Base64URL)
	// alphabet rank, not byte order: upper case first, digits after letters
	if b.Compare("Z", "a") >= 0 || b.Compare("z", "0") >= 0 || b.Compare("9", "-") >= 0 {
		t.Fatalf("base64url rank order broken")
	}
}

func TestShareCoversAlphabet(t *testing.T) {
	a := MustLookup(Base64URL)
	for _, n := range []int{1, 3, 7, 64} {
		var all []string
		for id := range n {
			share := a.Share(n, id)
			if len(share) == 0 {
				t.Fatalf("%d workers: worker %d got nothing", n, id)
			}
			all = append(all, share...)
		}
		if got := strings.Join(all, ""); got != alphabets[Base64URL] {
			t.Fatalf("%d workers: shares join to %q", n, got)
		}
	}
	if got := a.Share(3, 0); len(got) != 22 {
		t.Fatalf("first share = %d chars, want 22", len(got))
	}
	kit.MustPanic(t, func() { a.Share(65, 0) })
}

func TestStartKeys(t *testing.T) {
	a := MustLookup(Hex)
	keys := a.StartKeys(16, 3, 1)
	if len(keys) != 16 || keys[0] != "30" || keys[15] != "3f" {
		t.Fatalf("StartKeys = %v", keys)
	}
	if got := a.StartKeys(2, 1, 0); !slices.Equal(got, strings.Split("89abcdef", "")) {
		t.Fatalf("depth 0 = %v", got)
	}
	if err := a.CheckWorkers(17); !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("CheckWorkers(17) = %v", err)
	}
	if err := a.CheckWorkers(16); err != nil {
		t.Fatalf("CheckWorkers(16) = %v", err)
	}
}
