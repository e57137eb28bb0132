package importer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/campusops/enrollsync/internal/domain"
	"github.com/campusops/enrollsync/internal/repository"

	"github.com/google/uuid"
)

// Matching weights. Candidates are pre-filtered by exact class code, then
// scored on the identity-bearing fields below.
const (
	scoreName      = 0.6
	scoreDateExact = 0.25
	scoreDateNear  = 0.15
	scoreLevel     = 0.15

	// matchThreshold is the minimum score a candidate needs to be considered
	// the same enrollment as the row.
	matchThreshold = 0.75

	// dateWindowDays is how far apart two enrollment dates may be and still
	// count as a near match.
	dateWindowDays = 3
)

// Matcher finds existing enrollments a validated row might correspond to.
type Matcher struct {
	enrollments repository.EnrollmentRepository
}

// NewMatcher creates a matcher over the tenant-scoped enrollment lookup.
func NewMatcher(enrollments repository.EnrollmentRepository) *Matcher {
	return &Matcher{enrollments: enrollments}
}

// Match returns every candidate scoring at or above the threshold, ordered
// by score descending then target id ascending. The ordering is total, so
// identical inputs against an unchanged target set always produce the same
// list.
func (m *Matcher) Match(ctx context.Context, organizationID uuid.UUID, record domain.EnrollmentRecord) ([]domain.MatchCandidate, error) {
	targets, err := m.enrollments.ListByClassCode(ctx, organizationID, record.ClassCode)
	if err != nil {
		return nil, fmt.Errorf("failed to load match targets: %w", err)
	}

	var candidates []domain.MatchCandidate
	for _, target := range targets {
		score := scoreMatch(record, target)
		if score < matchThreshold {
			continue
		}
		candidates = append(candidates, domain.MatchCandidate{
			TargetID:    target.ID,
			Score:       score,
			StudentName: target.StudentName,
			ClassCode:   target.ClassCode,
			EnrolledOn:  target.EnrolledOn,
			Level:       target.Level,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].TargetID.String() < candidates[j].TargetID.String()
	})

	return candidates, nil
}

func scoreMatch(record domain.EnrollmentRecord, target domain.Enrollment) float64 {
	var score float64

	if domain.NormalizeText(record.StudentName) == domain.NormalizeText(target.StudentName) {
		score += scoreName
	}

	switch {
	case domain.DateEqual(record.EnrolledOn, target.EnrolledOn):
		score += scoreDateExact
	case withinDays(record.EnrolledOn, target.EnrolledOn, dateWindowDays):
		score += scoreDateNear
	}

	if record.Level != "" && record.Level == target.Level {
		score += scoreLevel
	}

	return score
}

func withinDays(a, b time.Time, days int) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff.Hours() <= float64(days)*24
}
