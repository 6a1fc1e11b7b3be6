package strings

import (
	"fmt"
	"testing"
)

func TestList(t *testing.T) {
	cases := map[string][]string{
		"":                           nil,
		" , ,":                       nil,
		"https://a.example":          {"https://a.example"},
		" https://a , https://b ,, ": {"https://a", "https://b"},
	}
	for in, want := range cases {
		if got := List(in); fmt.Sprint(got) != fmt.Sprint(want) || len(got) != len(want) {
			t.Fatalf("List(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOr(t *testing.T) {
	if got := Or("  ", "slicer"); got != "slicer" {
		t.Fatalf("blank = %q", got)
	}
	if got := Or("slicer-eu", "slicer"); got != "slicer-eu" {
		t.Fatalf("set = %q", got)
	}
}

func TestPrefix(t *testing.T) {
	cases := map[string]string{
		"/slicer/":   "/slicer",
		" slicer  ":  "/slicer",
		"//slicer//": "/slicer",
		"/a/b/":      "/a/b",
		"/":          "/",
		"":           "/",
	}
	for in, want := range cases {
		if got := Prefix(in); got != want {
			t.Fatalf("Prefix(%q) = %q, want %q", in, got, want)
		}
	}
}
