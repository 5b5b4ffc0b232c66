package listing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-map/internal/model"
)

func house(id string, price float64, city, province string, updated time.Time) model.Listing {
	return model.Listing{
		ID:           id,
		Price:        price,
		PropertyType: model.PropertyTypeHouse,
		City:         city,
		Province:     province,
		LastUpdated:  updated,
	}
}

func TestFindSimilar_PriceBand(t *testing.T) {
	now := time.Now()
	repo := &fakeRepo{listings: []model.Listing{
		house("ref", 500000, "Toronto", "ON", now),
		house("upper-edge", 600000, "Toronto", "ON", now),
		house("too-high", 610000, "Toronto", "ON", now),
		house("lower-edge", 400000, "Toronto", "ON", now),
		house("too-low", 399999, "Toronto", "ON", now),
	}}
	r := NewRecommender(repo, 0)

	got, err := r.FindSimilar(context.Background(), "ref", 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"upper-edge", "lower-edge"}, ids(got))
}

func TestFindSimilar_ExcludesSelfAndOtherTypes(t *testing.T) {
	now := time.Now()
	condo := house("condo", 500000, "Toronto", "ON", now)
	condo.PropertyType = model.PropertyTypeCondo
	repo := &fakeRepo{listings: []model.Listing{
		house("ref", 500000, "Toronto", "ON", now),
		condo,
		house("twin", 500000, "Toronto", "ON", now),
	}}
	r := NewRecommender(repo, 0)

	got, err := r.FindSimilar(context.Background(), "ref", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"twin"}, ids(got))
}

func TestFindSimilarTo_SelfInCandidatesIsDropped(t *testing.T) {
	ref := house("ref", 500000, "Toronto", "ON", time.Now())
	// A repository that ignores the id exclusion must not leak the reference.
	leaky := &leakyRepo{fakeRepo: fakeRepo{listings: []model.Listing{ref}}}
	got, err := NewRecommender(leaky, 0).FindSimilarTo(context.Background(), ref, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

type leakyRepo struct{ fakeRepo }

func (r *leakyRepo) SimilarCandidates(_ context.Context, _ model.Listing, _, _ float64) ([]model.Listing, error) {
	return r.listings, nil
}

func TestFindSimilar_LocalityCaseInsensitive(t *testing.T) {
	now := time.Now()
	repo := &fakeRepo{listings: []model.Listing{
		house("ref", 500000, "Toronto", "ON", now),
		house("same-city", 500000, "TORONTO", "QC", now),
		house("same-province", 500000, "Ottawa", "on", now),
		house("elsewhere", 500000, "Montreal", "QC", now),
	}}

	got, err := NewRecommender(repo, 0).FindSimilar(context.Background(), "ref", 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"same-city", "same-province"}, ids(got))
}

func TestFindSimilar_OrderedByLastUpdatedAndTruncated(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	listings := []model.Listing{house("ref", 500000, "Toronto", "ON", base)}
	for i := 0; i < 8; i++ {
		listings = append(listings, house(fmt.Sprintf("c%d", i), 500000, "Toronto", "ON", base.Add(time.Duration(i)*time.Hour)))
	}
	r := NewRecommender(&fakeRepo{listings: listings}, 0)

	got, err := r.FindSimilar(context.Background(), "ref", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c7", "c6", "c5", "c4", "c3"}, ids(got))

	got, err = r.FindSimilar(context.Background(), "ref", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c7", "c6"}, ids(got))
}

func TestFindSimilar_NoMatchesIsEmptyNotError(t *testing.T) {
	repo := &fakeRepo{listings: []model.Listing{house("ref", 500000, "Toronto", "ON", time.Now())}}
	got, err := NewRecommender(repo, 0).FindSimilar(context.Background(), "ref", 5)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFindSimilar_InvalidReference(t *testing.T) {
	repo := &fakeRepo{listings: []model.Listing{house("unpriced", math.NaN(), "Toronto", "ON", time.Now())}}
	r := NewRecommender(repo, 0)

	_, err := r.FindSimilar(context.Background(), "missing", 5)
	assert.True(t, errors.Is(err, ErrInvalidReference))
	assert.True(t, errors.Is(err, ErrNotFound))

	repo.calls = 0
	_, err = r.FindSimilar(context.Background(), "unpriced", 5)
	assert.True(t, errors.Is(err, ErrInvalidReference))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 1, repo.calls, "only the reference lookup may run")

	_, err = r.FindSimilar(context.Background(), "", 5)
	assert.True(t, errors.Is(err, ErrInvalidReference))
}

func TestFindSimilar_StorageFailure(t *testing.T) {
	repo := &fakeRepo{err: errors.New("timeout")}
	_, err := NewRecommender(repo, 0).FindSimilar(context.Background(), "ref", 5)
	assert.True(t, errors.Is(err, ErrQueryFailure))
	assert.False(t, errors.Is(err, ErrInvalidReference))
}

func TestFindSimilar_SQLite(t *testing.T) {
	repo := newTestSQLite(t)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	seed(t, repo,
		house("ref", 500000, "Toronto", "ON", base),
		house("newer", 590000, "toronto", "ON", base.Add(2*time.Hour)),
		house("older", 450000, "Hamilton", "On", base.Add(time.Hour)),
		house("excluded", 610000, "Toronto", "ON", base.Add(3*time.Hour)),
	)

	got, err := NewRecommender(repo, 0).FindSimilar(context.Background(), "ref", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"newer", "older"}, ids(got))
}
