package search

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/atlas/ai/mock"
	"github.com/poiesic/atlas/core"
	"github.com/poiesic/atlas/index"
	"github.com/poiesic/atlas/storage"
	"github.com/poiesic/atlas/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	beijing = core.GeoPoint{Lat: 39.9169, Lon: 116.3907}

	mingEra = core.TimeRange{Start: 1368, End: 1644}
)

type fixture struct {
	repo     storage.EntityRepository
	idx      *index.VectorIndex
	searcher *Searcher
}

// newFixture builds a searcher over an in-memory store whose query
// embeddings are pinned to queryVector.
func newFixture(t *testing.T, queryVector []float32, opts ...Option) *fixture {
	t.Helper()

	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})

	idx := index.NewVectorIndex()

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return queryVector, nil
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockGenerator())

	searcher, err := NewSearcher(repo, idx, provider, opts...)
	require.NoError(t, err)

	return &fixture{repo: repo, idx: idx, searcher: searcher}
}

func (f *fixture) seed(t *testing.T, entities ...*core.GeoEntity) {
	t.Helper()
	require.NoError(t, f.repo.PutEntities(context.Background(), entities...))
	for _, e := range entities {
		require.NoError(t, f.idx.Upsert(e.Id, e.Vector))
	}
}

func entity(title string, vector []float32, point *core.GeoPoint, era *core.TimeRange) *core.GeoEntity {
	e := &core.GeoEntity{
		Id:     core.IDFromContent(title),
		Title:  title,
		Text:   title + " description",
		Vector: vector,
		Era:    era,
	}
	if point != nil {
		e.Geometry = &core.Geometry{Kind: core.GeometryPoint, Point: *point}
	}
	return e
}

func TestSearchScenarioBeijingMing(t *testing.T) {
	// Beijing-area query with a Ming dynasty window: nearby Ming sites
	// rank, distant and modern ones don't.
	query := []float32{1, 0, 0}
	f := newFixture(t, query)

	forbiddenCity := entity("Forbidden City", []float32{0.9, 0.1, 0}, &beijing, &mingEra)
	templeOfHeaven := entity("Temple of Heaven", []float32{0.8, 0.2, 0}, &core.GeoPoint{Lat: 39.8822, Lon: 116.4066}, &mingEra)
	shanghaiTower := entity("Shanghai Tower", []float32{0.95, 0.05, 0}, &core.GeoPoint{Lat: 31.2336, Lon: 121.5055}, &core.TimeRange{Start: 2008, End: 2015})
	modernStadium := entity("National Stadium", []float32{0.85, 0.15, 0}, &core.GeoPoint{Lat: 39.9915, Lon: 116.3907}, &core.TimeRange{Start: 2003, End: 2008})
	f.seed(t, forbiddenCity, templeOfHeaven, shanghaiTower, modernStadium)

	results, err := f.searcher.Search(context.Background(), &core.Query{
		Text:       "ming dynasty palaces",
		GeoFilter:  &core.GeoFilter{Center: beijing, RadiusMeters: 15000},
		TimeFilter: &mingEra,
		TopK:       5,
	})
	require.NoError(t, err)

	ids := resultIDs(results)
	assert.Contains(t, ids, forbiddenCity.Id)
	assert.Contains(t, ids, templeOfHeaven.Id)
	assert.NotContains(t, ids, shanghaiTower.Id, "outside the radius")
	assert.NotContains(t, ids, modernStadium.Id, "era does not overlap the window")

	// Forbidden City is both semantically closer and nearer the center.
	assert.Equal(t, forbiddenCity.Id, results[0].Id)
}

func TestSearchRadiusExcludesNearMiss(t *testing.T) {
	// A 3km radius drops a semantically strong match 4km away.
	query := []float32{1, 0, 0}
	f := newFixture(t, query)

	forbiddenCity := entity("Forbidden City", []float32{0.7, 0.3, 0}, &beijing, nil)
	templeOfHeaven := entity("Temple of Heaven", []float32{1, 0, 0}, &core.GeoPoint{Lat: 39.8822, Lon: 116.4066}, nil)
	f.seed(t, forbiddenCity, templeOfHeaven)

	results, err := f.searcher.Search(context.Background(), &core.Query{
		Text:      "temples",
		GeoFilter: &core.GeoFilter{Center: beijing, RadiusMeters: 3000},
		TopK:      10,
	})
	require.NoError(t, err)

	ids := resultIDs(results)
	assert.Contains(t, ids, forbiddenCity.Id)
	assert.NotContains(t, ids, templeOfHeaven.Id)
}

func TestSearchInvalidTopK(t *testing.T) {
	f := newFixture(t, []float32{1, 0, 0})

	_, err := f.searcher.Search(context.Background(), &core.Query{Text: "anything", TopK: 0})
	assert.ErrorIs(t, err, core.ErrInvalidQuery)

	_, err = f.searcher.Search(context.Background(), &core.Query{Text: "anything", TopK: -3})
	assert.ErrorIs(t, err, core.ErrInvalidQuery)
}

func TestSearchNoFilters(t *testing.T) {
	// Without filters spatial and temporal scores are 1.0 and the rank
	// reduces to semantic order.
	query := []float32{1, 0, 0}
	f := newFixture(t, query)

	best := entity("Best", []float32{1, 0, 0}, &beijing, &mingEra)
	second := entity("Second", []float32{0.8, 0.2, 0}, nil, nil)
	f.seed(t, best, second)

	results, err := f.searcher.Search(context.Background(), &core.Query{Text: "q", TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, best.Id, results[0].Id)
	for _, r := range results {
		assert.Equal(t, float32(1), r.SpatialScore)
		assert.Equal(t, float32(1), r.TemporalScore)
	}
}

func TestSearchUndatedNeverExcluded(t *testing.T) {
	query := []float32{1, 0, 0}
	f := newFixture(t, query)

	undated := entity("Old Well", []float32{1, 0, 0}, &beijing, nil)
	f.seed(t, undated)

	results, err := f.searcher.Search(context.Background(), &core.Query{
		Text:       "well",
		TimeFilter: &mingEra,
		TopK:       5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, undated.Id, results[0].Id)
	assert.Equal(t, float32(1), results[0].TemporalScore)
}

func TestSearchTemporalScoreIsOverlapFraction(t *testing.T) {
	query := []float32{1, 0, 0}
	f := newFixture(t, query)

	// Covers half of the 1400..1599 window.
	halfOverlap := entity("Half", []float32{1, 0, 0}, nil, &core.TimeRange{Start: 1500, End: 1700})
	f.seed(t, halfOverlap)

	window := core.TimeRange{Start: 1400, End: 1600}
	results, err := f.searcher.Search(context.Background(), &core.Query{
		Text:       "q",
		TimeFilter: &window,
		TopK:       1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.5, float64(results[0].TemporalScore), 0.01)
}

func TestSearchEmptyEligibleSet(t *testing.T) {
	query := []float32{1, 0, 0}
	f := newFixture(t, query)

	far := entity("Far Away", []float32{1, 0, 0}, &core.GeoPoint{Lat: -33.86, Lon: 151.2}, nil)
	f.seed(t, far)

	results, err := f.searcher.Search(context.Background(), &core.Query{
		Text:      "q",
		GeoFilter: &core.GeoFilter{Center: beijing, RadiusMeters: 1000},
		TopK:      5,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchEmptyStore(t *testing.T) {
	f := newFixture(t, []float32{1, 0, 0})

	results, err := f.searcher.Search(context.Background(), &core.Query{Text: "q", TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchBackfill(t *testing.T) {
	// TopK semantic hits all fail the predicate; doubling k must surface
	// the eligible entities further down the similarity order.
	query := []float32{1, 0, 0}
	f := newFixture(t, query)

	var eligible []*core.GeoEntity
	// 8 strong matches far away, 2 weaker ones in range
	for i := 0; i < 8; i++ {
		e := entity(
			"Far "+string(rune('A'+i)),
			[]float32{1, float32(i) * 0.001, 0},
			&core.GeoPoint{Lat: -33.86, Lon: 151.2},
			nil,
		)
		f.seed(t, e)
	}
	for i := 0; i < 2; i++ {
		e := entity(
			"Near "+string(rune('A'+i)),
			[]float32{0.2, 1, float32(i) * 0.01},
			&beijing,
			nil,
		)
		eligible = append(eligible, e)
		f.seed(t, e)
	}

	mon := &recordingMonitor{}
	results, err := f.searcher.SearchWithMonitor(context.Background(), &core.Query{
		Text:      "q",
		GeoFilter: &core.GeoFilter{Center: beijing, RadiusMeters: 5000},
		TopK:      2,
	}, mon)
	require.NoError(t, err)

	require.Len(t, results, 2)
	ids := resultIDs(results)
	for _, e := range eligible {
		assert.Contains(t, ids, e.Id)
	}
	assert.NotEmpty(t, mon.backfills, "expected at least one backfill round")
}

func TestSearchDeterministic(t *testing.T) {
	query := []float32{1, 0, 0}
	f := newFixture(t, query)

	// Identical vectors force tie-breaks through to the id ordering.
	a := entity("Alpha", []float32{1, 0, 0}, &beijing, &mingEra)
	b := entity("Beta", []float32{1, 0, 0}, &beijing, &mingEra)
	c := entity("Gamma", []float32{1, 0, 0}, &beijing, &mingEra)
	f.seed(t, a, b, c)

	q := &core.Query{
		Text:       "q",
		GeoFilter:  &core.GeoFilter{Center: beijing, RadiusMeters: 5000},
		TimeFilter: &mingEra,
		TopK:       3,
	}

	first, err := f.searcher.Search(context.Background(), q)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := f.searcher.Search(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSearchRetrievalFailure(t *testing.T) {
	query := []float32{1, 0, 0}
	f := newFixture(t, query, WithRetry(2, time.Millisecond))

	e := entity("Something", []float32{1, 0, 0}, nil, nil)
	f.seed(t, e)
	f.idx.Close()

	_, err := f.searcher.Search(context.Background(), &core.Query{Text: "q", TopK: 1})
	assert.ErrorIs(t, err, ErrRetrievalFailed)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestNewSearcherValidation(t *testing.T) {
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer backend.Close()
	defer repo.Close()

	idx := index.NewVectorIndex()
	provider := mock.NewMockProvider()

	_, err = NewSearcher(nil, idx, provider)
	assert.ErrorIs(t, err, ErrEntityRepositoryRequired)

	_, err = NewSearcher(repo, nil, provider)
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = NewSearcher(repo, idx, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	_, err = NewSearcher(repo, idx, provider, WithWeights(Weights{Semantic: 1, Spatial: 1, Temporal: 1}))
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func resultIDs(results []core.RankedResult) []core.ID {
	ids := make([]core.ID, len(results))
	for i, r := range results {
		ids[i] = r.Id
	}
	return ids
}

// recordingMonitor captures backfill rounds for assertions.
type recordingMonitor struct {
	noopMonitor
	backfills []int
}

func (m *recordingMonitor) BackfillAttempt(k int, have int) {
	m.backfills = append(m.backfills, k)
}
