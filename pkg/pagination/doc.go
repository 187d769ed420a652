// Package pagination turns offset-paged Atlassian listings into lazy
// sequences.
//
// Bamboo pages with start-index/max-result and Bitbucket Server with
// start/limit. Both are driven by the same Cursor, which only owns the
// pagination arithmetic; the network call is supplied as a Fetcher.
//
// Example usage:
//
//	fetch := pagination.FetcherFunc[Plan](func(ctx context.Context, start, size int) (pagination.Page[Plan], error) {
//		// one authenticated GET, decoded into a page
//	})
//	for plan, err := range pagination.Iterate(ctx, fetch, pagination.DefaultOptions()) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(plan.Key)
//	}
//
// The cursor:
//   - Fetches one page at a time, only when the consumer asks for more
//   - Advances the start index by exactly the number of records returned
//   - Stops on an empty page (exhausted)
//   - Stops silently when the server reports a different start index than
//     the one requested (the listing changed between pages)
//   - Yields fetch failures once, wrapped in *FetchError, and never retries
//
// Gather drains several independent sequences on a worker pool, e.g. one
// label search per label.
package pagination
