package classify

import (
	"regexp"
	"strings"
)

// DefaultQueues is the closed vocabulary of team and queue names tickets can
// be routed to.
var DefaultQueues = []string{
	"Chameleon", "High Performance Computing", "Technology Infrastructure",
	"Data Intensive Computing", "Security", "Visualization", "DesignSafe-ci",
	"Accounting", "Agave", "Advanced Computing Interfaces", "Life Sciences",
	"Advanced Computing Systems", "SD2E", "TRADES", "Cloud and Interactive Computing",
	"Dell Medical School", "Web & Mobile Apps", "TUP", "Frontera", "Epic", "NSO",
	"Designsafe-pub-feedback", "EPIC-CyberRange", "3DEM", "Accounts", "Allocations",
	"Citizenship", "Feature-Requests", "Machine Learning", "MFA", "PDATA",
}

var (
	queueCreatedRE     = regexp.MustCompile(`A ticket has been created in the (.*?) Queue\.`)
	queueTransferredRE = regexp.MustCompile(`A ticket has been transferred to the (.*?) Queue\.`)
	queueChangedRE     = regexp.MustCompile(`Queue changed from .*? to '?([^']+?)'?(?: by .*)?$`)
)

const categoryMarker = "[Category]"

// CategoryOf returns the text following the first [Category] marker.
func CategoryOf(lines []string) string {
	for _, line := range lines {
		if strings.Contains(line, categoryMarker) {
			return strings.TrimSpace(strings.Replace(line, categoryMarker, "", 1))
		}
	}
	return ""
}

// QueueOf finds the queue a record names. Explicit routing notices win over
// a bare mention of a known queue name.
func (p *Profile) QueueOf(lines []string) string {
	for _, line := range lines {
		for _, re := range []*regexp.Regexp{queueCreatedRE, queueTransferredRE, queueChangedRE} {
			if m := re.FindStringSubmatch(line); m != nil {
				return strings.TrimSpace(m[1])
			}
		}
	}
	for _, line := range lines {
		padded := " " + line + " "
		for _, q := range p.queues {
			if strings.Contains(padded, " "+q+" ") {
				return q
			}
		}
	}
	return ""
}
