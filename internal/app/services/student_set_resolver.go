package services

import (
	"context"
	"sort"

	"github.com/advisehq/advising/internal/app/models"
)

// StudentSetResolver expands a batch note target (explicit sids plus saved
// cohorts and curated groups) into one deduplicated sid list. Resolution is
// tolerant of filter drift: a group deleted between selection and submission
// contributes nothing. Submitted sids are taken at face value; membership in
// the local students projection is not required.
type StudentSetResolver struct {
	filters FilterStore
}

// NewStudentSetResolver creates a new student set resolver instance.
func NewStudentSetResolver(filters FilterStore) *StudentSetResolver {
	return &StudentSetResolver{filters: filters}
}

// Resolve returns the distinct sids targeted by the given selectors, in a
// stable sorted order so batch creation is deterministic. The result is
// exactly the union of the explicit sids and the members of every named
// cohort and curated group.
func (r *StudentSetResolver) Resolve(ctx context.Context, sids []string, cohortIDs, curatedGroupIDs []int64) ([]string, error) {
	seen := make(map[string]bool)
	collect := func(batch []string) {
		for _, sid := range batch {
			if sid != "" && !seen[sid] {
				seen[sid] = true
			}
		}
	}
	collect(sids)

	for _, id := range cohortIDs {
		members, err := r.filters.MemberSIDs(ctx, models.GroupDomainCohort, id)
		if err != nil {
			return nil, err
		}
		collect(members)
	}
	for _, id := range curatedGroupIDs {
		members, err := r.filters.MemberSIDs(ctx, models.GroupDomainCurated, id)
		if err != nil {
			return nil, err
		}
		collect(members)
	}

	resolved := make([]string, 0, len(seen))
	for sid := range seen {
		resolved = append(resolved, sid)
	}
	sort.Strings(resolved)
	return resolved, nil
}
