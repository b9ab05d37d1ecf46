package location

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/geocode"
	"github.com/ashureev/smartkissan/internal/store"
)

type fakeGeocoder struct {
	calls atomic.Int32
	err   error
	block bool
}

func (f *fakeGeocoder) Reverse(ctx context.Context, _, _ float64) (*geocode.Place, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &geocode.Place{
		DisplayName: "Moga, Punjab, India",
		Locality:    "Moga",
		Region:      "Punjab",
		Country:     "India",
		CountryCode: "IN",
	}, nil
}

func newRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "kissan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestResolveGeocodesAndCaches(t *testing.T) {
	repo := newRepo(t)
	geo := &fakeGeocoder{}
	svc := NewService(repo, geo, Config{}, nil)
	ctx := context.Background()

	loc, err := svc.Resolve(ctx, "u1", Fix{Latitude: 30.81, Longitude: 75.17})
	require.NoError(t, err)
	assert.Equal(t, "Moga", loc.LocationName)
	assert.Equal(t, "Punjab", loc.Region)
	assert.Equal(t, "IN", loc.CountryCode)

	cur, err := svc.Current(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "Moga", cur.LocationName)
	assert.InDelta(t, 30.81, cur.Latitude, 1e-9)
}

func TestResolveReusesFreshNearbyLocation(t *testing.T) {
	repo := newRepo(t)
	geo := &fakeGeocoder{}
	svc := NewService(repo, geo, Config{Freshness: time.Hour}, nil)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "u1", Fix{Latitude: 30.81, Longitude: 75.17})
	require.NoError(t, err)

	// About 50 m away.
	loc, err := svc.Resolve(ctx, "u1", Fix{Latitude: 30.8104, Longitude: 75.1702})
	require.NoError(t, err)
	assert.Equal(t, "Moga", loc.LocationName)
	assert.Equal(t, int32(1), geo.calls.Load())

	// Several kilometres away.
	_, err = svc.Resolve(ctx, "u1", Fix{Latitude: 30.9, Longitude: 75.2})
	require.NoError(t, err)
	assert.Equal(t, int32(2), geo.calls.Load())
}

func TestResolveRefreshesStaleLocation(t *testing.T) {
	repo := newRepo(t)
	geo := &fakeGeocoder{}
	svc := NewService(repo, geo, Config{Freshness: time.Hour}, nil)
	ctx := context.Background()

	require.NoError(t, repo.UpsertLocation(ctx, "u1", domain.UserLocation{
		Latitude: 30.81, Longitude: 75.17, LocationName: "Old", LastUpdated: time.Now().Add(-2 * time.Hour),
	}))

	loc, err := svc.Resolve(ctx, "u1", Fix{Latitude: 30.81, Longitude: 75.17})
	require.NoError(t, err)
	assert.Equal(t, "Moga", loc.LocationName)
	assert.Equal(t, int32(1), geo.calls.Load())
}

func TestResolveKeepsCoordinatesWhenGeocodingFails(t *testing.T) {
	repo := newRepo(t)
	svc := NewService(repo, &fakeGeocoder{err: errors.New("boom")}, Config{}, nil)

	loc, err := svc.Resolve(context.Background(), "u1", Fix{Latitude: 12.97, Longitude: 77.59})
	require.NoError(t, err)
	assert.InDelta(t, 12.97, loc.Latitude, 1e-9)
	assert.Empty(t, loc.LocationName)
	assert.Empty(t, loc.Error)
}

func TestResolveLookupTimeout(t *testing.T) {
	repo := newRepo(t)
	svc := NewService(repo, &fakeGeocoder{block: true}, Config{LookupTimeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	loc, err := svc.Resolve(context.Background(), "u1", Fix{Latitude: 12.97, Longitude: 77.59})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, loc.HasName())
}

func TestResolveFailureKeepsLastGoodCoordinates(t *testing.T) {
	repo := newRepo(t)
	svc := NewService(repo, &fakeGeocoder{}, Config{}, nil)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "u1", Fix{Latitude: 30.81, Longitude: 75.17})
	require.NoError(t, err)

	loc, err := svc.Resolve(ctx, "u1", Fix{Error: domain.LocationErrDenied})
	require.NoError(t, err)
	assert.Equal(t, domain.LocationErrDenied, loc.Error)
	assert.InDelta(t, 30.81, loc.Latitude, 1e-9)
	assert.Equal(t, "Moga", loc.LocationName)
	assert.True(t, loc.Known(), "coordinates from the earlier fix stay known")

	stored, err := svc.Current(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, stored.IsDefault)
}

func TestResolveFailureFallsBackToPreferredDefault(t *testing.T) {
	repo := newRepo(t)
	svc := NewService(repo, &fakeGeocoder{}, Config{}, nil)
	ctx := context.Background()

	loc, err := svc.Resolve(ctx, "u1", Fix{Error: domain.LocationErrTimeout})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultLatitude, loc.Latitude)
	assert.Equal(t, domain.DefaultLongitude, loc.Longitude)
	assert.True(t, loc.IsDefault)
	assert.False(t, loc.Known())

	stored, err := svc.Current(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, stored.IsDefault)

	again, err := svc.Resolve(ctx, "u1", Fix{Error: domain.LocationErrDenied})
	require.NoError(t, err)
	assert.False(t, again.Known(), "a repeated failure does not promote the default")

	fixed, err := svc.Resolve(ctx, "u1", Fix{Latitude: 30.81, Longitude: 75.17})
	require.NoError(t, err)
	assert.True(t, fixed.Known())

	prefs := domain.DefaultPreferences()
	prefs.DefaultLocation = [2]float64{12.97, 77.59}
	require.NoError(t, repo.UpsertPreferences(ctx, "u2", prefs))

	loc, err = svc.Resolve(ctx, "u2", Fix{Error: domain.LocationErrUnsupported})
	require.NoError(t, err)
	assert.Equal(t, 12.97, loc.Latitude)
	assert.Equal(t, domain.LocationErrUnsupported, loc.Error)
}

func TestResolveRejectsInvalidCoordinates(t *testing.T) {
	svc := NewService(newRepo(t), nil, Config{}, nil)
	_, err := svc.Resolve(context.Background(), "u1", Fix{Latitude: 120, Longitude: 0})
	assert.ErrorIs(t, err, ErrInvalidFix)
}

func TestCurrentWithoutLocation(t *testing.T) {
	svc := NewService(newRepo(t), nil, Config{}, nil)
	loc, err := svc.Current(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, loc)
}
