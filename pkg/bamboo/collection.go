package bamboo

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Sternrassler/atlassian-client/pkg/client"
	"github.com/Sternrassler/atlassian-client/pkg/pagination"
)

// collectionHeader holds the paging fields Bamboo puts next to the items
// of every collection.
type collectionHeader struct {
	Size       int `json:"size"`
	MaxResult  int `json:"max-result"`
	StartIndex int `json:"start-index"`
}

// decodeCollection reads a Bamboo paged envelope:
//
//	{"<collectionKey>": {"size": n, "max-result": m, "start-index": s, "<itemKey>": [...]}}
//
// An empty collectionKey means the paging fields sit at the top level.
func decodeCollection[T any](resp *http.Response, collectionKey, itemKey string) (pagination.Page[T], error) {
	var raw json.RawMessage
	if err := client.DecodeJSON(resp, &raw); err != nil {
		return pagination.Page[T]{}, err
	}

	if collectionKey != "" {
		var outer map[string]json.RawMessage
		if err := json.Unmarshal(raw, &outer); err != nil {
			return pagination.Page[T]{}, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		inner, ok := outer[collectionKey]
		if !ok {
			return pagination.Page[T]{}, fmt.Errorf("%w: no %q collection", ErrUnexpectedResponse, collectionKey)
		}
		raw = inner
	}

	var header collectionHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return pagination.Page[T]{}, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return pagination.Page[T]{}, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	var items []T
	if itemsRaw, ok := fields[itemKey]; ok {
		if err := json.Unmarshal(itemsRaw, &items); err != nil {
			return pagination.Page[T]{}, fmt.Errorf("decode %s items: %w", itemKey, err)
		}
	}

	return pagination.NewPage(items, header.StartIndex).WithTotal(header.Size), nil
}

// collectionFetcher fetches one page of a collection resource using the
// start-index / max-result query parameters.
func collectionFetcher[T any](c *Client, endpoint string, query url.Values, collectionKey, itemKey string) pagination.FetcherFunc[T] {
	return func(ctx context.Context, startIndex, pageSize int) (pagination.Page[T], error) {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("start-index", strconv.Itoa(startIndex))
		q.Set("max-result", strconv.Itoa(pageSize))

		resp, err := c.api.Get(ctx, endpoint, q, nil)
		if err != nil {
			return pagination.Page[T]{}, err
		}
		return decodeCollection[T](resp, collectionKey, itemKey)
	}
}

// list iterates a paged collection resource.
func list[T any](ctx context.Context, c *Client, endpoint string, query url.Values, opts ListOptions, collectionKey, itemKey string) iter.Seq2[T, error] {
	return pagination.Iterate[T](ctx, collectionFetcher[T](c, endpoint, query, collectionKey, itemKey), opts.cursor())
}

// listTemplate is list for a URI template endpoint.
func listTemplate[T any](ctx context.Context, c *Client, template string, vars map[string]string, query url.Values, opts ListOptions, collectionKey, itemKey string) iter.Seq2[T, error] {
	endpoint, err := client.Expand(template, vars)
	if err != nil {
		return pagination.Fail[T](err)
	}
	return list[T](ctx, c, endpoint, query, opts, collectionKey, itemKey)
}
