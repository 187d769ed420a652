package bamboo

import (
	"sort"
	"strings"
)

// validResultExpands are the expansions accepted for result listings.
var validResultExpands = map[string]bool{
	"artifacts":                   true,
	"comments":                    true,
	"labels":                      true,
	"jiraIssues":                  true,
	"stages":                      true,
	"stages.stage":                true,
	"stages.stage.results":        true,
	"stages.stage.results.result": true,
}

// ResultExpand builds the expand parameter for result listings. Unknown
// names are dropped, duplicates collapse, and each kept name is prefixed
// with "results.result.". The output is sorted so it is stable.
func ResultExpand(expand []string) string {
	seen := make(map[string]bool, len(expand))
	kept := make([]string, 0, len(expand))
	for _, name := range expand {
		if !validResultExpands[name] || seen[name] {
			continue
		}
		seen[name] = true
		kept = append(kept, "results.result."+name)
	}
	sort.Strings(kept)
	return strings.Join(kept, ",")
}
