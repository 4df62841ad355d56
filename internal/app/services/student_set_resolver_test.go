package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisehq/advising/internal/app/models"
)

func newResolverFixture() (*StudentSetResolver, *fakeFilterStore) {
	filters := newFakeFilterStore()
	return NewStudentSetResolver(filters), filters
}

func TestResolveUnionsAndDeduplicates(t *testing.T) {
	resolver, filters := newResolverFixture()
	filters.set(models.GroupDomainCohort, 1, []string{"22667052", "11667051"})
	filters.set(models.GroupDomainCurated, 2, []string{"33667053", "22667052"})

	sids, err := resolver.Resolve(context.Background(), []string{"11667051"}, []int64{1}, []int64{2})
	require.NoError(t, err)

	assert.Equal(t, []string{"11667051", "22667052", "33667053"}, sids)
}

func TestResolveKeepsEverySubmittedSID(t *testing.T) {
	resolver, filters := newResolverFixture()
	filters.set(models.GroupDomainCohort, 1, []string{"22667052", "44444444"})

	// Sids are taken at face value. Nothing is checked against the students
	// table, so the result is exactly the union of the selectors.
	sids, err := resolver.Resolve(context.Background(), []string{"11667051", "55555555"}, []int64{1}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"11667051", "22667052", "44444444", "55555555"}, sids)
}

func TestResolveToleratesVanishedGroups(t *testing.T) {
	resolver, _ := newResolverFixture()

	// Group 404 was deleted between selection and submission; it simply
	// contributes nothing.
	sids, err := resolver.Resolve(context.Background(), []string{"22667052"}, []int64{404}, []int64{404})
	require.NoError(t, err)

	assert.Equal(t, []string{"22667052"}, sids)
}

func TestResolveEmptySelectors(t *testing.T) {
	resolver, _ := newResolverFixture()

	sids, err := resolver.Resolve(context.Background(), nil, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, sids)
}
