package handeye

import (
	"fmt"
	"strings"
)

// AllAlias selects every method.
const AllAlias = "all"

var methodAliases = map[string]string{
	"tsai-lenz":   "tsai-lenz",
	"tsai":        "tsai-lenz",
	"park-martin": "park-martin",
	"park":        "park-martin",
	"daniilidis":  "daniilidis",
	"li-wang-wu":  "li-wang-wu",
	"li":          "li-wang-wu",
	"shah":        "shah",
	"all":         AllAlias,
	"--all":       AllAlias,
}

// ResolveMethodAlias maps a user-supplied, case-insensitive method name or
// short alias to the canonical names it selects. "all" selects every method.
func ResolveMethodAlias(name string) ([]string, error) {
	key, ok := methodAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%q (available: %s | all): %w", name, strings.Join(MethodNames(), " | "), ErrUnknownMethod)
	}
	if key == AllAlias {
		return MethodNames(), nil
	}
	return []string{key}, nil
}

// ResolveMethodAliases resolves a list of names, expanding "all" and dropping
// duplicates. Unknown names are kept verbatim so that a batch run can report
// them individually.
func ResolveMethodAliases(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		resolved, err := ResolveMethodAlias(n)
		if err != nil {
			resolved = []string{n}
		}
		for _, r := range resolved {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}
