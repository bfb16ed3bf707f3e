package service

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/pkg/config"
)

// DefaultMatchingConfig mirrors the configuration defaults.
func DefaultMatchingConfig() config.MatchingConfig {
	return config.MatchingConfig{
		AvailabilityWeight: 40,
		ExactCourseWeight:  30,
		RelatedWeight:      15,
		RatingWeight:       30,
		CapacityThreshold:  10,
		OveragePenalty:     5,
		MinScore:           0,
	}
}

// MatchScorer is a deterministic, explainable scoring function. It performs no I/O.
type MatchScorer struct {
	cfg config.MatchingConfig
}

// NewMatchScorer builds a scorer; zero weights fall back to the defaults.
func NewMatchScorer(cfg config.MatchingConfig) *MatchScorer {
	defaults := DefaultMatchingConfig()
	if cfg.AvailabilityWeight <= 0 {
		cfg.AvailabilityWeight = defaults.AvailabilityWeight
	}
	if cfg.ExactCourseWeight <= 0 {
		cfg.ExactCourseWeight = defaults.ExactCourseWeight
	}
	if cfg.RelatedWeight <= 0 {
		cfg.RelatedWeight = defaults.RelatedWeight
	}
	if cfg.RatingWeight <= 0 {
		cfg.RatingWeight = defaults.RatingWeight
	}
	if cfg.CapacityThreshold <= 0 {
		cfg.CapacityThreshold = defaults.CapacityThreshold
	}
	if cfg.OveragePenalty <= 0 {
		cfg.OveragePenalty = defaults.OveragePenalty
	}
	if cfg.MinScore < 0 {
		cfg.MinScore = 0
	}
	return &MatchScorer{cfg: cfg}
}

// Score returns a value in [0, 100] rounded to one decimal and the justification of
// every non-zero factor, always in the order availability, subject, rating, workload.
func (s *MatchScorer) Score(req models.StudentRequest, candidate models.TutorCandidate) (float64, []string) {
	justifications := make([]string, 0, 4)
	total := 0.0

	if fraction := coveredFraction(req.PreferredWindows, candidate.Availability); fraction > 0 {
		total += fraction * s.cfg.AvailabilityWeight
		justifications = append(justifications, fmt.Sprintf("Available for %d%% of the requested time", int(math.Round(fraction*100))))
	}

	switch match, subject := subjectMatch(req, candidate.Subjects); match {
	case subjectExact:
		total += s.cfg.ExactCourseWeight
		justifications = append(justifications, fmt.Sprintf("Teaches %s", subject))
	case subjectRelated:
		total += s.cfg.RelatedWeight
		justifications = append(justifications, fmt.Sprintf("Teaches related subject %s", subject))
	}

	rating := math.Max(0, math.Min(5, candidate.AverageRating))
	if rating > 0 {
		total += rating / 5 * s.cfg.RatingWeight
		justifications = append(justifications, fmt.Sprintf("Average rating %.1f/5", rating))
	}

	if over := candidate.Workload - s.cfg.CapacityThreshold; over >= 0 {
		penalty := float64(over+1) * s.cfg.OveragePenalty
		total -= penalty
		justifications = append(justifications, fmt.Sprintf("Workload %d sessions at or above capacity %d (-%.1f)", candidate.Workload, s.cfg.CapacityThreshold, penalty))
	}

	total = math.Max(0, math.Min(100, total))
	return math.Round(total*10) / 10, justifications
}

// Rank scores every eligible candidate and orders them by score descending, ties by
// tutor id ascending. Candidates without an id, the requesting student, repeated ids
// and scores below the configured minimum are skipped.
func (s *MatchScorer) Rank(req models.StudentRequest, candidates []models.TutorCandidate) []models.RankedTutor {
	seen := make(map[string]struct{}, len(candidates))
	ranked := make([]models.RankedTutor, 0, len(candidates))
	for _, candidate := range candidates {
		id := strings.TrimSpace(candidate.ID)
		if id == "" || id == req.StudentID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		score, justifications := s.Score(req, candidate)
		if score < s.cfg.MinScore {
			continue
		}
		ranked = append(ranked, models.RankedTutor{TutorID: id, Score: score, Justifications: justifications})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].TutorID < ranked[j].TutorID
	})
	return ranked
}

type subjectMatchKind int

const (
	subjectNone subjectMatchKind = iota
	subjectRelated
	subjectExact
)

func subjectMatch(req models.StudentRequest, subjects []string) (subjectMatchKind, string) {
	course := strings.ToUpper(strings.TrimSpace(req.Course))
	area := strings.ToUpper(strings.TrimSpace(req.Subject))
	prefix := coursePrefix(course)

	best, label := subjectNone, ""
	for _, raw := range subjects {
		subject := strings.ToUpper(strings.TrimSpace(raw))
		if subject == "" {
			continue
		}
		if course != "" && subject == course {
			return subjectExact, strings.TrimSpace(raw)
		}
		if best == subjectNone && ((prefix != "" && coursePrefix(subject) == prefix) || (area != "" && subject == area)) {
			best, label = subjectRelated, strings.TrimSpace(raw)
		}
	}
	return best, label
}

// coursePrefix returns the leading letters of a course code ("CO" for "CO1001").
// Codes without a digit have no prefix.
func coursePrefix(code string) string {
	i := strings.IndexFunc(code, func(r rune) bool { return !unicode.IsLetter(r) })
	if i <= 0 || !unicode.IsDigit(rune(code[i])) {
		return ""
	}
	return code[:i]
}

func coveredFraction(requested, available []models.TimeWindow) float64 {
	want := models.MergeWindows(requested)
	have := models.MergeWindows(available)
	var total, covered time.Duration
	for _, w := range want {
		total += w.Duration()
		for _, a := range have {
			start, end := w.Start, w.End
			if a.Start.After(start) {
				start = a.Start
			}
			if a.End.Before(end) {
				end = a.End
			}
			if end.After(start) {
				covered += end.Sub(start)
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(covered) / float64(total)
}
