package condor

import (
	"regexp"
	"strings"
)

var clusterIDRe = regexp.MustCompile(`submitted to cluster (\d+)`)

// ParseJobIDs extracts job ids from condor_q output: the first token of every
// line after the "ID ..." header, up to the first blank line.
func ParseJobIDs(output string) []string {
	ids := []string{}
	interested := false

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !interested {
			if strings.HasPrefix(line, "ID") {
				interested = true
			}
			continue
		}
		if line == "" {
			break
		}
		ids = append(ids, strings.Fields(line)[0])
	}
	return ids
}

// ClusterID returns the cluster number announced by condor_submit, e.g.
// "1 job(s) submitted to cluster 12345." yields "12345". Empty when absent.
func ClusterID(output string) string {
	matches := clusterIDRe.FindStringSubmatch(output)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}
