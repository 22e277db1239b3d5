// Package urlcomposer substitutes ${KEY} placeholders in url() references.
package urlcomposer

import (
	"sort"
	"strings"

	"github.com/maruel/natural"

	"gcss/css"
)

// New returns visitor replacing every "${KEY}" occurrence inside url()
// references and @import locations with mapping[KEY]. Keys are case
// sensitive, placeholders without mapping are left as is.
func New(mapping map[string]string) css.Visitor {
	if len(mapping) == 0 {
		return css.Visitor{}
	}

	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	// stable order so results do not depend on map iteration
	sort.Sort(natural.StringSlice(keys))

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "${"+k+"}", mapping[k])
	}
	r := strings.NewReplacer(pairs...)

	return css.Visitor{
		URL: func(url string) string {
			if !strings.Contains(url, "${") {
				return url
			}
			return r.Replace(url)
		},
	}
}
