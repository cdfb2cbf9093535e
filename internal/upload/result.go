package upload

import (
	"sort"
	"sync"
)

// Bucket names the partition a path ended in.
type Bucket string

const (
	BucketUploaded    Bucket = "uploaded"
	BucketMatched     Bucket = "matched"
	BucketNotUploaded Bucket = "not_uploaded"
)

// BatchResult partitions every input path into exactly one bucket. Uploaded
// and Matched map to server ids, NotUploaded maps to a reason.
type BatchResult struct {
	Uploaded    map[string]string `json:"uploaded"`
	Matched     map[string]string `json:"matched"`
	NotUploaded map[string]string `json:"not_uploaded"`
}

// NewBatchResult returns an empty result with all maps allocated.
func NewBatchResult() BatchResult {
	return BatchResult{
		Uploaded:    map[string]string{},
		Matched:     map[string]string{},
		NotUploaded: map[string]string{},
	}
}

// Len returns the number of paths across all buckets.
func (r BatchResult) Len() int {
	return len(r.Uploaded) + len(r.Matched) + len(r.NotUploaded)
}

// Bucket reports where path ended and its server id or reason.
func (r BatchResult) Bucket(path string) (Bucket, string, bool) {
	if v, ok := r.Uploaded[path]; ok {
		return BucketUploaded, v, true
	}
	if v, ok := r.Matched[path]; ok {
		return BucketMatched, v, true
	}
	if v, ok := r.NotUploaded[path]; ok {
		return BucketNotUploaded, v, true
	}
	return "", "", false
}

// Paths returns every path in the result, sorted.
func (r BatchResult) Paths() []string {
	out := make([]string, 0, r.Len())
	for _, m := range []map[string]string{r.Uploaded, r.Matched, r.NotUploaded} {
		for p := range m {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// accumulator is the single shared write target of a batch. The first
// resolution of a path wins so buckets stay disjoint.
type accumulator struct {
	mu       sync.Mutex
	result   BatchResult
	resolved map[string]struct{}
	total    int
	progress func(done, total int)
}

func newAccumulator(total int, progress func(done, total int)) *accumulator {
	return &accumulator{
		result:   NewBatchResult(),
		resolved: make(map[string]struct{}, total),
		total:    total,
		progress: progress,
	}
}

func (a *accumulator) uploaded(path, serverID string) { a.resolve(path, BucketUploaded, serverID) }

func (a *accumulator) matched(path, serverID string) { a.resolve(path, BucketMatched, serverID) }

func (a *accumulator) notUploaded(path, reason string) { a.resolve(path, BucketNotUploaded, reason) }

func (a *accumulator) resolve(path string, bucket Bucket, value string) {
	a.mu.Lock()
	if _, done := a.resolved[path]; done {
		a.mu.Unlock()
		return
	}
	a.resolved[path] = struct{}{}
	switch bucket {
	case BucketUploaded:
		a.result.Uploaded[path] = value
	case BucketMatched:
		a.result.Matched[path] = value
	default:
		a.result.NotUploaded[path] = value
	}
	done := len(a.resolved)
	a.mu.Unlock()

	if a.progress != nil {
		a.progress(done, a.total)
	}
}

func (a *accumulator) isResolved(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.resolved[path]
	return ok
}

func (a *accumulator) uploadedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.result.Uploaded)
}

// snapshot returns a deep copy so callers never share maps with workers.
func (a *accumulator) snapshot() BatchResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := NewBatchResult()
	for k, v := range a.result.Uploaded {
		out.Uploaded[k] = v
	}
	for k, v := range a.result.Matched {
		out.Matched[k] = v
	}
	for k, v := range a.result.NotUploaded {
		out.NotUploaded[k] = v
	}
	return out
}
