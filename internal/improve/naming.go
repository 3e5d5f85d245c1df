package improve

import (
	"fmt"
	"strings"
)

const improvedPrefix = "Improved"

// NextImprovedName returns "Improved v<n>" where n is one more than the number
// of distinct existing names starting with "Improved". It is a display
// counter: gaps appear when improved prompts are deleted, and the result can
// collide with an existing name after a deletion.
func NextImprovedName(existing []string) string {
	seen := make(map[string]struct{})
	for _, name := range existing {
		if strings.HasPrefix(name, improvedPrefix) {
			seen[name] = struct{}{}
		}
	}
	return fmt.Sprintf("%s v%d", improvedPrefix, len(seen)+1)
}
