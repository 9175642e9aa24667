package core

import (
	"context"

	"github.com/pkg/errors"
)

// PagingHandler defines how a Pager fetches and chains pages of T.
type PagingHandler[T any] struct {
	// More reports whether the given page has a successor.
	More func(T) bool

	// Fetcher returns the next page. The argument is nil for the first
	// call and the previous page afterwards.
	Fetcher func(context.Context, *T) (T, error)
}

// Pager iterates pages of a list operation.
type Pager[T any] struct {
	handler PagingHandler[T]
	current *T
}

// NewPager is used by service clients to build their list pagers.
func NewPager[T any](handler PagingHandler[T]) *Pager[T] {
	return &Pager[T]{handler: handler}
}

// More reports whether there are additional pages to fetch.
func (p *Pager[T]) More() bool {
	if p.current == nil {
		return true
	}
	return p.handler.More(*p.current)
}

// NextPage fetches the next page. A failed fetch does not advance the
// pager, so the same page can be retried.
func (p *Pager[T]) NextPage(ctx context.Context) (T, error) {
	var empty T
	if !p.More() {
		return empty, errors.New("no more pages")
	}
	page, err := p.handler.Fetcher(ctx, p.current)
	if err != nil {
		return empty, err
	}
	p.current = &page
	return page, nil
}
