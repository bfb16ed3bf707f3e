package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/pkg/config"
)

func window(startHour, endHour int) models.TimeWindow {
	return models.TimeWindow{
		Start: time.Date(2025, 10, 22, startHour, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 10, 22, endHour, 0, 0, 0, time.UTC),
	}
}

func TestMatchScorerCombinesFactorsInOrder(t *testing.T) {
	scorer := NewMatchScorer(config.MatchingConfig{})
	req := models.StudentRequest{StudentID: "S-1", Course: "CO1001", PreferredWindows: []models.TimeWindow{window(9, 11)}}
	candidate := models.TutorCandidate{ID: "T-1", Subjects: []string{"MT1003", "CO1001"}, Availability: []models.TimeWindow{window(10, 12)}, Workload: 3, AverageRating: 4.5}

	score, justifications := scorer.Score(req, candidate)
	require.Equal(t, 77.0, score)
	require.Equal(t, []string{
		"Available for 50% of the requested time",
		"Teaches CO1001",
		"Average rating 4.5/5",
	}, justifications)
}

func TestMatchScorerRelatedSubjectAndWorkloadPenalty(t *testing.T) {
	scorer := NewMatchScorer(DefaultMatchingConfig())
	req := models.StudentRequest{StudentID: "S-1", Course: "CO1001"}
	candidate := models.TutorCandidate{ID: "T-2", Subjects: []string{"CO2003"}, Workload: 12}

	score, justifications := scorer.Score(req, candidate)
	require.Equal(t, 0.0, score)
	require.Equal(t, []string{
		"Teaches related subject CO2003",
		"Workload 12 sessions at or above capacity 10 (-15.0)",
	}, justifications)
}

func TestMatchScorerSubjectAreaCountsAsRelated(t *testing.T) {
	scorer := NewMatchScorer(DefaultMatchingConfig())
	req := models.StudentRequest{Course: "CO1001", Subject: "Computer Science"}

	score, _ := scorer.Score(req, models.TutorCandidate{ID: "T-3", Subjects: []string{"computer science"}})
	require.Equal(t, 15.0, score)

	score, justifications := scorer.Score(req, models.TutorCandidate{ID: "T-4", Subjects: []string{"History"}})
	require.Equal(t, 0.0, score)
	require.Empty(t, justifications)
}

func TestMatchScorerClampsAndRounds(t *testing.T) {
	scorer := NewMatchScorer(DefaultMatchingConfig())
	req := models.StudentRequest{Course: "CO1001", PreferredWindows: []models.TimeWindow{window(9, 10), window(9, 10)}}

	score, _ := scorer.Score(req, models.TutorCandidate{ID: "T-1", Subjects: []string{"CO1001"}, Availability: []models.TimeWindow{window(8, 12)}, AverageRating: 7})
	require.Equal(t, 100.0, score)

	score, _ = scorer.Score(req, models.TutorCandidate{ID: "T-1", Subjects: []string{"CO1001"}, Availability: []models.TimeWindow{window(8, 12)}, AverageRating: 5, Workload: 10})
	require.Equal(t, 95.0, score)

	score, _ = scorer.Score(models.StudentRequest{Course: "X"}, models.TutorCandidate{ID: "T-1", AverageRating: 4.33})
	require.Equal(t, 26.0, score)

	score, _ = scorer.Score(models.StudentRequest{Course: "X"}, models.TutorCandidate{ID: "T-1", AverageRating: -2, Workload: 40})
	require.Equal(t, 0.0, score)
}

func TestMatchScorerNoOverlapContributesNothing(t *testing.T) {
	scorer := NewMatchScorer(DefaultMatchingConfig())
	req := models.StudentRequest{Course: "X", PreferredWindows: []models.TimeWindow{window(9, 10)}}

	score, justifications := scorer.Score(req, models.TutorCandidate{ID: "T-1", Availability: []models.TimeWindow{window(10, 11)}})
	require.Equal(t, 0.0, score)
	require.Empty(t, justifications)
}

func TestMatchScorerRankOrdersAndFilters(t *testing.T) {
	scorer := NewMatchScorer(config.MatchingConfig{MinScore: 10})
	req := models.StudentRequest{StudentID: "S-1", Course: "CO1001"}

	ranked := scorer.Rank(req, []models.TutorCandidate{
		{ID: "T-b", AverageRating: 4},
		{ID: "T-a", AverageRating: 4},
		{ID: "T-c", Subjects: []string{"CO1001"}, AverageRating: 5},
		{ID: "S-1", Subjects: []string{"CO1001"}, AverageRating: 5},
		{ID: "", AverageRating: 5},
		{ID: "T-b", Subjects: []string{"CO1001"}, AverageRating: 5},
		{ID: "T-low", AverageRating: 1},
	})

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.TutorID
	}
	require.Equal(t, []string{"T-c", "T-a", "T-b"}, ids)
	require.Equal(t, 60.0, ranked[0].Score)
	require.Equal(t, 24.0, ranked[1].Score)
	require.Equal(t, ranked[1].Score, ranked[2].Score)
}
