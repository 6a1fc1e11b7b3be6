package main

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"rangeslicer/internal/services/slicer/domain"
)

// line is one NDJSON record
type line struct {
	Worker int          `json:"worker"`
	Slice  domain.Slice `json:"slice"`
}

// ndjson writes every dispatched slice as one JSON line
type ndjson struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newNDJSON(w io.Writer) *ndjson { return &ndjson{enc: json.NewEncoder(w)} }

func (n *ndjson) Dispatch(_ context.Context, worker int, s domain.Slice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enc.Encode(line{Worker: worker, Slice: s})
}

// perKey writes one line per key group, so a restart resumes inside a slice
type perKey struct{ *ndjson }

func (p perKey) DispatchKeys(ctx context.Context, worker int, s domain.Slice, ks domain.KeySlice) error {
	s.Keys = []domain.KeySlice{ks}
	s.Count = ks.Count
	return p.Dispatch(ctx, worker, s)
}

var _ domain.KeyDispatcher = perKey{}
