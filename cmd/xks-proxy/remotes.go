package main

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/ruteri/threshold-xks/interfaces"
)

// parseRemotes parses repeated "<index>=<url>" values.
func parseRemotes(values []string) (map[interfaces.ShareIndex]string, error) {
	remotes := make(map[interfaces.ShareIndex]string, len(values))
	for _, value := range values {
		indexStr, rawURL, ok := strings.Cut(value, "=")
		if !ok {
			return nil, fmt.Errorf("remote %q: expected <share index>=<url>", value)
		}
		n, err := strconv.ParseUint(strings.TrimSpace(indexStr), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("remote %q: invalid share index: %w", value, err)
		}
		index := interfaces.ShareIndex(n)
		if err := index.Validate(); err != nil {
			return nil, fmt.Errorf("remote %q: %w", value, err)
		}
		if _, dup := remotes[index]; dup {
			return nil, fmt.Errorf("remote share %d configured twice", index)
		}

		u, err := url.Parse(strings.TrimSpace(rawURL))
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("remote %q: invalid url", value)
		}
		if u.Scheme != "https" {
			return nil, fmt.Errorf("remote %q: share services are only reachable over https", value)
		}
		remotes[index] = u.String()
	}
	if len(remotes) == 0 {
		return nil, fmt.Errorf("no remote participant configured")
	}
	return remotes, nil
}

func sortedIndices(remotes map[interfaces.ShareIndex]string) []interfaces.ShareIndex {
	return slices.Sorted(maps.Keys(remotes))
}

func lowestIndex(remotes map[interfaces.ShareIndex]string) interfaces.ShareIndex {
	return sortedIndices(remotes)[0]
}

// nextIndex returns the configured index after current, wrapping around.
func nextIndex(remotes map[interfaces.ShareIndex]string, current interfaces.ShareIndex) interfaces.ShareIndex {
	indices := sortedIndices(remotes)
	for i, index := range indices {
		if index == current {
			return indices[(i+1)%len(indices)]
		}
	}
	return indices[0]
}
