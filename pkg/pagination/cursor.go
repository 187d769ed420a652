package pagination

import (
	"context"
	"iter"
)

// State is the position of a traversal in the cursor state machine:
//
//	INIT -> FETCHING -> (YIELDING -> FETCHING)* -> EXHAUSTED | REJECTED | FAILED
//
// ABANDONED is recorded when the consumer stops pulling items early.
type State int

const (
	StateInit State = iota
	StateFetching
	StateYielding
	StateExhausted
	StateRejected
	StateFailed
	StateAbandoned
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFetching:
		return "fetching"
	case StateYielding:
		return "yielding"
	case StateExhausted:
		return "exhausted"
	case StateRejected:
		return "rejected"
	case StateFailed:
		return "failed"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Terminal reports whether the traversal has ended.
func (s State) Terminal() bool {
	return s >= StateExhausted
}

// CursorState is the bookkeeping of a single traversal.
type CursorState struct {
	// NextStartIndex is the offset requested by the next fetch. It grows by
	// exactly the returned count of every accepted page.
	NextStartIndex int

	// PageSize is constant for the traversal.
	PageSize int

	// Exhausted is set once an empty page has been accepted.
	Exhausted bool

	// State is the current state machine position.
	State State

	// Yielded counts the items delivered to the consumer.
	Yielded int

	// DeclaredTotal is the total reported by the last accepted page.
	DeclaredTotal int
	TotalKnown    bool
}

// Options controls where a traversal starts and how many items each
// fetch asks for.
type Options struct {
	StartIndex int
	PageSize   int
}

// DefaultOptions starts at offset 0 with DefaultPageSize.
func DefaultOptions() Options {
	return Options{StartIndex: 0, PageSize: DefaultPageSize}
}

// Validate checks the traversal preconditions.
func (o Options) Validate() error {
	if o.PageSize <= 0 {
		return ErrInvalidPageSize
	}
	if o.StartIndex < 0 {
		return ErrInvalidStartIndex
	}
	return nil
}

// Cursor drives repeated fetches of a paged listing and exposes the
// records as one lazy sequence.
//
// Every call to All starts a fresh traversal from Options.StartIndex; a
// traversal cannot be resumed once consumed. A Cursor must not be traversed
// from several goroutines at once.
//
// Termination assumes the remote resource eventually returns an empty page
// or reports a start index other than the one requested. A server that
// does neither yields an unbounded sequence.
type Cursor[T any] struct {
	fetcher Fetcher[T]
	opts    Options
	last    CursorState
}

// NewCursor validates opts and returns a cursor over fetcher.
func NewCursor[T any](fetcher Fetcher[T], opts Options) (*Cursor[T], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Cursor[T]{
		fetcher: fetcher,
		opts:    opts,
		last:    CursorState{NextStartIndex: opts.StartIndex, PageSize: opts.PageSize},
	}, nil
}

// State returns a snapshot of the most recent traversal's bookkeeping.
func (c *Cursor[T]) State() CursorState {
	return c.last
}

// All returns the records of the listing in server order.
//
// One fetch is made per page, strictly in sequence, and only when the
// consumer asks for more. A fetch failure is yielded once, wrapped in a
// *FetchError, after every earlier record has been delivered. A page whose
// start index differs from the one requested ends the sequence without an
// error and without yielding any of its records.
func (c *Cursor[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		st := CursorState{
			NextStartIndex: c.opts.StartIndex,
			PageSize:       c.opts.PageSize,
			State:          StateInit,
		}
		defer func() { c.last = st }()

		for {
			st.State = StateFetching
			page, err := c.fetcher.FetchPage(ctx, st.NextStartIndex, st.PageSize)
			if err != nil {
				st.State = StateFailed
				var zero T
				yield(zero, &FetchError{StartIndex: st.NextStartIndex, PageSize: st.PageSize, Err: err})
				return
			}

			// The view changed under us; keep the consistent prefix.
			if page.StartIndex != st.NextStartIndex {
				st.State = StateRejected
				return
			}

			st.DeclaredTotal, st.TotalKnown = page.DeclaredTotal, page.TotalKnown
			st.State = StateYielding
			for _, item := range page.Items {
				st.Yielded++
				if !yield(item, nil) {
					st.State = StateAbandoned
					return
				}
			}

			if page.ReturnedCount == 0 {
				st.Exhausted = true
				st.State = StateExhausted
				return
			}
			st.NextStartIndex += page.ReturnedCount
		}
	}
}

// Iterate is a one-shot convenience around NewCursor and All. Invalid
// options are reported as the only element of the sequence, before any
// fetch is made.
func Iterate[T any](ctx context.Context, fetcher Fetcher[T], opts Options) iter.Seq2[T, error] {
	cursor, err := NewCursor(fetcher, opts)
	if err != nil {
		return Fail[T](err)
	}
	return cursor.All(ctx)
}

// Fail returns a sequence whose only element is err.
func Fail[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}

// Collect drains seq. On error it returns the records delivered before
// the failure together with the error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var items []T
	for item, err := range seq {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Take drains at most n records from seq; n <= 0 means no limit. The
// underlying traversal is abandoned once n records have been read, so no
// further pages are fetched.
func Take[T any](seq iter.Seq2[T, error], n int) ([]T, error) {
	if n <= 0 {
		return Collect(seq)
	}
	items := make([]T, 0, n)
	for item, err := range seq {
		if err != nil {
			return items, err
		}
		items = append(items, item)
		if len(items) >= n {
			break
		}
	}
	return items, nil
}
