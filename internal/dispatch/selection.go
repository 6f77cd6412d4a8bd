package dispatch

import (
	"sort"
	"strings"

	"bookarr/internal/config"
	"bookarr/internal/services/torznab"
	"bookarr/internal/textutil"
)

// Policy ranks release candidates for a title. Ordering is fixed — title
// match tier, then seeders, then size — with config tuning the ties: with an
// expected size the closest candidate wins, otherwise the smallest.
type Policy struct {
	PreferExactMatch bool
	ExpectedSize     int64
}

// PolicyFromConfig builds the policy from the selection config section.
func PolicyFromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return Policy{PreferExactMatch: true}
	}
	return Policy{
		PreferExactMatch: cfg.Selection.PreferExactMatch,
		ExpectedSize:     cfg.Selection.ExpectedSizeMB * 1024 * 1024,
	}
}

// Select returns the best usable candidate for the normalized title.
// Candidates without a magnet are unusable. Returns false when nothing
// usable remains.
func (p Policy) Select(normalizedTitle string, candidates []torznab.Candidate) (torznab.Candidate, bool) {
	usable := make([]torznab.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Magnet != "" {
			usable = append(usable, candidate)
		}
	}
	if len(usable) == 0 {
		return torznab.Candidate{}, false
	}

	sort.SliceStable(usable, func(i, j int) bool {
		tierI, tierJ := p.titleTier(normalizedTitle, usable[i].Title), p.titleTier(normalizedTitle, usable[j].Title)
		if tierI != tierJ {
			return tierI < tierJ
		}
		if usable[i].Seeders != usable[j].Seeders {
			return usable[i].Seeders > usable[j].Seeders
		}
		return p.sizeDistance(usable[i].Size) < p.sizeDistance(usable[j].Size)
	})
	return usable[0], true
}

// titleTier buckets a candidate: 0 exact normalized match, 1 partial match,
// 2 everything else. When exact preference is disabled, exact and partial
// share a tier.
func (p Policy) titleTier(normalizedTitle, candidateTitle string) int {
	normalized := textutil.NormalizeTitle(candidateTitle)
	switch {
	case normalized == normalizedTitle:
		if p.PreferExactMatch {
			return 0
		}
		return 1
	case strings.Contains(normalized, normalizedTitle):
		return 1
	default:
		return 2
	}
}

func (p Policy) sizeDistance(size int64) int64 {
	if p.ExpectedSize <= 0 {
		return size
	}
	distance := size - p.ExpectedSize
	if distance < 0 {
		distance = -distance
	}
	return distance
}
