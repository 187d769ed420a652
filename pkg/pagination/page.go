package pagination

import "context"

// DefaultPageSize is the page size used by the Bamboo and Bitbucket
// listings when the caller does not ask for one.
const DefaultPageSize = 25

// Page is one decoded batch of a paged listing.
type Page[T any] struct {
	// Items holds the records of this page in server order.
	Items []T

	// StartIndex is the offset of Items[0] within the full result set,
	// as reported by the server.
	StartIndex int

	// ReturnedCount is the number of records actually present in this page.
	// Zero signals exhaustion.
	ReturnedCount int

	// DeclaredTotal is the server's claim about the total number of records
	// at fetch time. Only meaningful when TotalKnown is true; it may change
	// between pages if the collection mutates on the server.
	DeclaredTotal int
	TotalKnown    bool
}

// NewPage builds a page whose ReturnedCount matches the number of items.
func NewPage[T any](items []T, startIndex int) Page[T] {
	return Page[T]{
		Items:         items,
		StartIndex:    startIndex,
		ReturnedCount: len(items),
	}
}

// WithTotal returns a copy of the page carrying the server's declared total.
func (p Page[T]) WithTotal(total int) Page[T] {
	p.DeclaredTotal = total
	p.TotalKnown = true
	return p
}

// Fetcher performs one remote call for one page.
//
// Implementations own all transport concerns (auth, URL building, status
// handling, timeouts). The cursor only distinguishes a Page from an error.
type Fetcher[T any] interface {
	FetchPage(ctx context.Context, startIndex, pageSize int) (Page[T], error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc[T any] func(ctx context.Context, startIndex, pageSize int) (Page[T], error)

// FetchPage implements Fetcher.
func (f FetcherFunc[T]) FetchPage(ctx context.Context, startIndex, pageSize int) (Page[T], error) {
	return f(ctx, startIndex, pageSize)
}
