package importer

import (
	"github.com/campusops/enrollsync/internal/domain"

	"github.com/google/uuid"
)

// BuildChange combines matcher output and the field diff into the row's
// proposed change. When the top score is shared by more than one candidate
// the row is ambiguous: the tied candidates are recorded and no action is
// chosen until a reviewer resolves it.
func BuildChange(
	record domain.EnrollmentRecord,
	candidates []domain.MatchCandidate,
	lookup func(id uuid.UUID) (domain.Enrollment, error),
) (domain.ProposedChange, domain.RowStatus, []domain.MatchCandidate, error) {
	if len(candidates) == 0 {
		return domain.ProposedChange{Action: domain.ActionInsert}, domain.RowStatusValid, nil, nil
	}

	tied := tiedAtTop(candidates)
	if len(tied) > 1 {
		return domain.ProposedChange{Action: domain.ActionNone}, domain.RowStatusAmbiguous, tied, nil
	}

	target, err := lookup(tied[0].TargetID)
	if err != nil {
		return domain.ProposedChange{}, "", nil, err
	}

	return ChangeAgainst(record, target), domain.RowStatusValid, nil, nil
}

// ChangeAgainst computes the update-or-noop change for a row against one
// specific target. An empty diff is a NOOP, never an UPDATE.
func ChangeAgainst(record domain.EnrollmentRecord, target domain.Enrollment) domain.ProposedChange {
	diff := domain.DiffEnrollment(record, target)
	targetID := target.ID
	if diff.Empty() {
		return domain.ProposedChange{Action: domain.ActionNoop, TargetID: &targetID}
	}
	return domain.ProposedChange{Action: domain.ActionUpdate, TargetID: &targetID, Diff: diff}
}

func tiedAtTop(candidates []domain.MatchCandidate) []domain.MatchCandidate {
	top := candidates[0].Score
	tied := []domain.MatchCandidate{}
	for _, candidate := range candidates {
		if candidate.Score == top {
			tied = append(tied, candidate)
		}
	}
	return tied
}
