// Package markers positions engagement opportunities along the video
// timeline. Positions are derived state: recomputed whenever the duration or
// the opportunity set changes, never persisted.
package markers

import (
	"sort"

	"github.com/samber/lo"

	"brdge/internal/domain"
	"brdge/internal/timecode"
)

// MinDistance is the minimum separation between adjacent markers, in percent
// of the timeline width.
const MinDistance = 5.0

// ActivationWindow is how long a marker stays highlighted once the playhead
// reaches its timestamp, in seconds.
const ActivationWindow = 1.0

// Position is one opportunity's placement on the timeline.
type Position struct {
	OpportunityID string  `json:"opportunityId"`
	Percent       float64 `json:"percent"`
}

// Layout computes non-overlapping marker positions for the given
// opportunities. Opportunities sharing a timestamp string stack at a single
// position. The walk is greedy left to right: a group closer than
// MinDistance to its left neighbor is pushed right, and earlier groups are
// never pushed back. A push near the right edge may land past 100: spacing
// and ordering win over the nominal range, and the renderer pins overflow to
// the edge. Duration must be positive or nothing is rendered.
func Layout(opportunities []domain.EngagementOpportunity, duration float64) []Position {
	if duration <= 0 || len(opportunities) == 0 {
		return nil
	}

	groups := lo.GroupBy(opportunities, func(o domain.EngagementOpportunity) string {
		return o.Timestamp
	})

	type markerGroup struct {
		timestamp string
		percent   float64
	}

	ordered := make([]markerGroup, 0, len(groups))
	for timestamp := range groups {
		raw := timecode.ParseSeconds(timestamp) / duration * 100
		ordered = append(ordered, markerGroup{timestamp: timestamp, percent: raw})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].percent != ordered[j].percent {
			return ordered[i].percent < ordered[j].percent
		}
		return ordered[i].timestamp < ordered[j].timestamp
	})

	for i := 1; i < len(ordered); i++ {
		if ordered[i].percent < ordered[i-1].percent+MinDistance {
			ordered[i].percent = ordered[i-1].percent + MinDistance
		}
	}

	positions := make([]Position, 0, len(opportunities))
	for _, group := range ordered {
		for _, opportunity := range groups[group.timestamp] {
			positions = append(positions, Position{
				OpportunityID: opportunity.ID,
				Percent:       group.percent,
			})
		}
	}
	return positions
}

// Active reports whether a marker anchored at timestampSeconds should be
// highlighted at the given playhead position.
func Active(currentTime, timestampSeconds float64) bool {
	return currentTime >= timestampSeconds && currentTime < timestampSeconds+ActivationWindow
}
