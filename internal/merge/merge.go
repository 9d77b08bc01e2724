// Package merge presents a fully loaded local list and a paginated remote
// list as one ordered, deduplicated sequence. Remote pages are fetched only
// when the merge needs the next remote item.
package merge

import (
	"context"
	"fmt"
)

// DefaultPageSize is the remote page size used when none is configured.
const DefaultPageSize = 50

// Page is one slice of the remote list. Total is the size of the whole
// remote list as reported by the remote side.
type Page[T any] struct {
	Items []T
	Total int
}

// PageFetcher loads remote items [offset, offset+limit).
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, offset, limit int) (Page[T], error)
}

// FetcherFunc adapts a function to PageFetcher.
type FetcherFunc[T any] func(ctx context.Context, offset, limit int) (Page[T], error)

// FetchPage calls f.
func (f FetcherFunc[T]) FetchPage(ctx context.Context, offset, limit int) (Page[T], error) {
	return f(ctx, offset, limit)
}

// Merger walks both lists in the order given by Less. On ties the local
// item comes first. An id already emitted from either side is skipped.
//
// Both inputs must already be sorted by Less. Not safe for concurrent use.
type Merger[T any] struct {
	local  []T
	remote PageFetcher[T]
	less   func(a, b T) bool
	id     func(T) string

	pageSize int
	next     int
	buf      []T
	offset   int
	spent    bool
	fetches  int
	seen     map[string]struct{}
}

// Option configures a Merger.
type Option func(*options)

type options struct {
	pageSize int
}

// WithPageSize sets how many remote items are requested at a time.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// New creates a merger over local and remote.
func New[T any](local []T, remote PageFetcher[T], less func(a, b T) bool, id func(T) string, opts ...Option) *Merger[T] {
	o := options{pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Merger[T]{
		local:    local,
		remote:   remote,
		less:     less,
		id:       id,
		pageSize: o.pageSize,
		spent:    remote == nil,
		seen:     make(map[string]struct{}),
	}
}

// Next returns the next item. ok is false once both sides are exhausted.
func (m *Merger[T]) Next(ctx context.Context) (item T, ok bool, err error) {
	for {
		if err := m.fill(ctx); err != nil {
			var zero T
			return zero, false, err
		}

		haveLocal := m.next < len(m.local)
		haveRemote := len(m.buf) > 0
		switch {
		case haveLocal && haveRemote:
			if m.less(m.buf[0], m.local[m.next]) {
				item = m.popRemote()
			} else {
				item = m.popLocal()
			}
		case haveLocal:
			item = m.popLocal()
		case haveRemote:
			item = m.popRemote()
		default:
			var zero T
			return zero, false, nil
		}

		id := m.id(item)
		if _, dup := m.seen[id]; dup {
			continue
		}
		m.seen[id] = struct{}{}
		return item, true, nil
	}
}

// Take returns up to n further items.
func (m *Merger[T]) Take(ctx context.Context, n int) ([]T, error) {
	out := make([]T, 0, n)
	for len(out) < n {
		item, ok, err := m.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, item)
	}
	return out, nil
}

// Drain returns every remaining item, fetching all remote pages.
func (m *Merger[T]) Drain(ctx context.Context) ([]T, error) {
	var out []T
	for {
		item, ok, err := m.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, item)
	}
}

// Fetches returns how many remote pages have been requested.
func (m *Merger[T]) Fetches() int {
	return m.fetches
}

// fill loads the next remote page when the buffer is empty.
func (m *Merger[T]) fill(ctx context.Context) error {
	if len(m.buf) > 0 || m.spent {
		return nil
	}
	page, err := m.remote.FetchPage(ctx, m.offset, m.pageSize)
	m.fetches++
	if err != nil {
		return fmt.Errorf("fetch remote page at %d: %w", m.offset, err)
	}
	m.buf = page.Items
	m.offset += len(page.Items)
	if len(page.Items) == 0 || m.offset >= page.Total {
		m.spent = true
	}
	return nil
}

func (m *Merger[T]) popLocal() T {
	item := m.local[m.next]
	m.next++
	return item
}

func (m *Merger[T]) popRemote() T {
	item := m.buf[0]
	m.buf = m.buf[1:]
	return item
}
