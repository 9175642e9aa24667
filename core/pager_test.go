package core

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePage struct {
	Items      []string
	NextMarker string
}

func testPager(pages []fakePage, failOn int) *Pager[fakePage] {
	call := 0
	return NewPager(PagingHandler[fakePage]{
		More: func(p fakePage) bool { return p.NextMarker != "" },
		Fetcher: func(ctx context.Context, prev *fakePage) (fakePage, error) {
			call++
			if call == failOn {
				return fakePage{}, errors.New("transient fetch failure")
			}
			if prev == nil {
				return pages[0], nil
			}
			for i := range pages {
				if pages[i].NextMarker == "" {
					continue
				}
				if prev.NextMarker == pages[i].NextMarker {
					return pages[i+1], nil
				}
			}
			return fakePage{}, errors.New("walked off the end")
		},
	})
}

func TestPagerWalksAllPages(t *testing.T) {
	pages := []fakePage{
		{Items: []string{"a", "b"}, NextMarker: "m1"},
		{Items: []string{"c"}, NextMarker: "m2"},
		{Items: []string{"d"}},
	}
	pager := testPager(pages, 0)

	var items []string
	for pager.More() {
		page, err := pager.NextPage(context.Background())
		require.NoError(t, err)
		items = append(items, page.Items...)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, items)

	_, err := pager.NextPage(context.Background())
	assert.Error(t, err, "NextPage past the last page must fail")
}

func TestPagerFetchErrorDoesNotAdvance(t *testing.T) {
	pages := []fakePage{
		{Items: []string{"a"}, NextMarker: "m1"},
		{Items: []string{"b"}},
	}
	pager := testPager(pages, 2)

	first, err := pager.NextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, first.Items)

	_, err = pager.NextPage(context.Background())
	require.Error(t, err)
	assert.True(t, pager.More(), "failed fetch must leave the pager retryable")

	second, err := pager.NextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, second.Items)
}
