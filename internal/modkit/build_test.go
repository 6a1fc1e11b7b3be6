package modkit

import (
	"net/http"
	"testing"
)

type sink struct{ name string }

func TestBuildDefaultsAndOptions(t *testing.T) {
	b := Build("slicer")
	if b.Name != "slicer" || b.Prefix != "" || b.Ports != nil || len(b.Mw) != 0 {
		t.Fatalf("defaults = %+v", b)
	}

	mw := func(h http.Handler) http.Handler { return h }
	opts := []Option{WithName("slicer-eu"), WithPrefix("/slicer"), WithMiddlewares(mw, mw), WithPorts(sink{name: "ndjson"})}
	b = Build("slicer", opts...)
	if b.Name != "slicer-eu" || b.Prefix != "/slicer" || len(b.Mw) != 2 {
		t.Fatalf("built = %+v", b)
	}
	s, ok := PortsAs[sink](b)
	if !ok || s.name != "ndjson" {
		t.Fatalf("PortsAs = %+v, %t", s, ok)
	}
	if _, ok := PortsAs[int](b); ok {
		t.Fatalf("PortsAs must fail on the wrong type")
	}
}
