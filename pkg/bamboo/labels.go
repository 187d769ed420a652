package bamboo

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/Sternrassler/atlassian-client/pkg/client"
	"github.com/Sternrassler/atlassian-client/pkg/pagination"
)

// Build status icons sit in the same table cell as the project, plan and
// build links of a labelled build.
const (
	buildIconSelector = "span.aui-icon, span.aui-icon-small"
	nextPageSelector  = "a.nextLink"
)

// BuildsByLabel finds the builds tagged with each label. There is no REST
// resource for this, so the builds-for-label page is scraped one page
// index at a time until it stops offering a next link. Labels are
// searched one after the other; a build carrying several of them is
// yielded once per label.
func (c *Client) BuildsByLabel(ctx context.Context, labels ...string) iter.Seq2[BuildRef, error] {
	return func(yield func(BuildRef, error) bool) {
		for _, label := range labels {
			for pageIndex := 1; ; pageIndex++ {
				refs, more, err := c.labelPage(ctx, label, pageIndex)
				if err != nil {
					yield(BuildRef{}, err)
					return
				}
				for _, ref := range refs {
					if !yield(ref, nil) {
						return
					}
				}
				if !more {
					break
				}
			}
		}
	}
}

// BuildsByLabels searches several labels concurrently and groups the
// builds by label. Labels that could be searched keep their results when
// another label fails.
func (c *Client) BuildsByLabels(ctx context.Context, config pagination.Config, labels []string) (map[string][]BuildRef, error) {
	sources := make(map[string]pagination.Source[BuildRef], len(labels))
	for _, label := range labels {
		sources[label] = func(ctx context.Context) iter.Seq2[BuildRef, error] {
			return c.BuildsByLabel(ctx, label)
		}
	}
	return pagination.Gather(ctx, config, sources)
}

func (c *Client) labelPage(ctx context.Context, label string, pageIndex int) ([]BuildRef, bool, error) {
	query := url.Values{
		"labelName": {label},
		"pageIndex": {strconv.Itoa(pageIndex)},
	}
	resp, err := c.api.Get(ctx, buildsForLabelAction, query, http.Header{"Accept": {"text/html"}})
	if err != nil {
		return nil, false, fmt.Errorf("builds for label %q page %d: %w", label, pageIndex, err)
	}
	defer resp.Body.Close()

	if err := client.CheckStatus(resp); err != nil {
		return nil, false, fmt.Errorf("builds for label %q page %d: %w", label, pageIndex, err)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("parse builds for label %q page %d: %w", label, pageIndex, err)
	}

	refs, more := parseLabelPage(doc, label)
	c.logger.Debug().
		Str("label", label).
		Int("page_index", pageIndex).
		Int("builds", len(refs)).
		Bool("more", more).
		Msg("Scraped builds for label")
	return refs, more, nil
}

// parseLabelPage extracts the builds of one result page and reports
// whether a further page exists.
func parseLabelPage(doc *goquery.Document, label string) ([]BuildRef, bool) {
	var refs []BuildRef
	doc.Find(buildIconSelector).Closest("td").Each(func(_ int, cell *goquery.Selection) {
		links := cell.Find("a")
		if links.Length() < 3 {
			return
		}
		refs = append(refs, BuildRef{
			Label:      label,
			ProjectKey: hrefKey(links.Eq(0)),
			PlanKey:    hrefKey(links.Eq(1)),
			BuildKey:   hrefKey(links.Eq(2)),
		})
	})
	return refs, doc.Find(nextPageSelector).Length() > 0
}

// hrefKey returns the last path element of a link, e.g. "PROJ-PLAN-12"
// for "/browse/PROJ-PLAN-12".
func hrefKey(link *goquery.Selection) string {
	href, _ := link.Attr("href")
	if u, err := url.Parse(href); err == nil {
		href = u.Path
	}
	return path.Base(href)
}
