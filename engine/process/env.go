package process

import (
	"os"
	"sort"
	"strings"
)

// mergeEnvironment overlays extra onto the worker environment. The child
// inherits everything, including the variable that holds the database
// password, so secrets never travel through argv.
func mergeEnvironment(extra map[string]string) []string {
	base := os.Environ()
	if len(extra) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(extra))
	replaced := make(map[string]struct{}, len(extra))
	for _, kv := range base {
		equal := strings.IndexByte(kv, '=')
		if equal <= 0 {
			continue
		}
		key := kv[:equal]
		if value, ok := extra[key]; ok {
			merged = append(merged, key+"="+value)
			replaced[key] = struct{}{}
			continue
		}
		merged = append(merged, kv)
	}
	keys := make([]string, 0, len(extra))
	for key := range extra {
		if _, ok := replaced[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		merged = append(merged, key+"="+extra[key])
	}
	return merged
}
