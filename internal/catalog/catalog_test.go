package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgsearch/internal/feature"
	pkgerrors "imgsearch/pkg/errors"
)

// blob returns n descriptors scattered around (x, y).
func blob(x, y float32, n int) feature.DescriptorSet {
	offsets := [][2]float32{{0, 0}, {0.5, 0}, {0, 0.5}, {0.5, 0.5}, {0.25, 0.25}, {-0.5, 0}, {0, -0.5}}
	d := make(feature.DescriptorSet, n)
	for i := range d {
		o := offsets[i%len(offsets)]
		d[i] = []float32{x + o[0], y + o[1]}
	}
	return d
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	opts := DefaultOptions()
	opts.LockTimeout = 0
	return New(opts)
}

func TestSearchPrefersIdenticalImage(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.AddImage(blob(0, 0, 6), "first", false))
	require.NoError(t, c.AddImage(blob(100, 100, 6), "second", false))
	require.NoError(t, c.AddImage(blob(200, 0, 6), "third", false))
	require.NoError(t, c.BuildVocabularyTree(3, 1))
	require.NoError(t, c.BuildHashTable())

	matches, err := c.Search(blob(100, 100, 6))
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "second", matches[0].Name)
	assert.Equal(t, 1, matches[0].Position)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Less(t, matches[1].Score, matches[0].Score)
}

func TestSearchEndToEnd(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.AddImage(blob(1, 1, 5), "A", false))
	require.NoError(t, c.AddImage(blob(9, 9, 5), "B", false))
	require.NoError(t, c.BuildVocabularyTree(2, 1))
	assert.Equal(t, 2, c.Stats().Leaves)
	require.NoError(t, c.BuildHashTable())

	query := feature.DescriptorSet{{1.1, 0.9}, {0.8, 1.2}, {1.3, 1.4}}
	matches, err := c.Search(query)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "A", matches[0].Name)
	assert.Equal(t, "B", matches[1].Name)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestSearchEmptyCatalog(t *testing.T) {
	c := newTestCatalog(t)
	matches, err := c.Search(blob(0, 0, 3))
	assert.Nil(t, matches)
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyCatalog)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestSearchPreconditions(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.AddImage(blob(0, 0, 4), "a", false))

	_, err := c.Search(blob(0, 0, 4))
	assert.ErrorIs(t, err, pkgerrors.ErrVocabularyNotBuilt)

	require.NoError(t, c.BuildVocabularyTree(2, 1))
	_, err = c.Search(blob(0, 0, 4))
	assert.ErrorIs(t, err, pkgerrors.ErrHashTableMismatch)

	require.NoError(t, c.BuildHashTable())
	_, err = c.Search(feature.DescriptorSet{{1, 2, 3}})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidDimension)
}

func TestAddImageComputeHashPreconditions(t *testing.T) {
	c := newTestCatalog(t)

	err := c.AddImage(blob(0, 0, 4), "early", true)
	assert.ErrorIs(t, err, pkgerrors.ErrPreconditionViolation)
	assert.ErrorIs(t, err, pkgerrors.ErrVocabularyNotBuilt)
	assert.Equal(t, 0, c.Len())

	require.NoError(t, c.AddImage(blob(0, 0, 4), "a", false))
	require.NoError(t, c.AddImage(blob(5, 5, 4), "b", false))
	require.NoError(t, c.BuildVocabularyTree(2, 1))

	err = c.AddImage(blob(0, 0, 4), "c", true)
	assert.ErrorIs(t, err, pkgerrors.ErrHashTableMismatch)
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.BuildHashTable())
	require.NoError(t, c.AddImage(blob(5, 5, 4), "c", true))
	stats := c.Stats()
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 3, stats.Histograms)
	assert.Equal(t, StateHashed, c.State())

	err = c.AddImage(feature.DescriptorSet{{1, 2, 3}}, "wide", true)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidDimension)
	err = c.AddImage(nil, "none", false)
	assert.ErrorIs(t, err, pkgerrors.ErrNoDescriptors)
}

func TestRankTiesKeepInsertionOrder(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.AddImage(blob(9, 9, 4), "far", false))
	require.NoError(t, c.AddImage(blob(0, 0, 4), "twin1", false))
	require.NoError(t, c.AddImage(blob(0, 0, 4), "twin2", false))
	require.NoError(t, c.BuildVocabularyTree(2, 1))
	require.NoError(t, c.BuildHashTable())

	matches, err := c.Rank(blob(0, 0, 4))
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, []string{"twin1", "twin2", "far"}, []string{matches[0].Name, matches[1].Name, matches[2].Name})
	assert.Equal(t, matches[0].Score, matches[1].Score)
}

func TestSortMatches(t *testing.T) {
	matches := []Match{
		{Name: "c", Score: 0.5, Position: 2},
		{Name: "a", Score: 0.9, Position: 3},
		{Name: "b", Score: 0.5, Position: 0},
		{Name: "d", Score: 0, Position: 1},
	}
	sortMatches(matches)
	var names []string
	for _, m := range matches {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
}

func TestSearchReturnsTopFive(t *testing.T) {
	c := newTestCatalog(t)
	for i := 0; i < 7; i++ {
		require.NoError(t, c.AddImage(blob(float32(i*10), 0, 4), feature.RecordName(i), false))
	}
	require.NoError(t, c.BuildVocabularyTree(3, 3))
	require.NoError(t, c.BuildHashTable())

	ranked, err := c.Rank(blob(30, 0, 4))
	require.NoError(t, err)
	assert.Len(t, ranked, 7)

	top, err := c.Search(blob(30, 0, 4))
	require.NoError(t, err)
	assert.Len(t, top, DefaultTopMatches)
	assert.Equal(t, ranked[:DefaultTopMatches], top)
	assert.Equal(t, "i0000003", top[0].Name)
}

func TestTop(t *testing.T) {
	m := []Match{{Name: "a"}, {Name: "b"}}
	assert.Len(t, Top(m, 1), 1)
	assert.Len(t, Top(m, 5), 2)
	assert.Len(t, Top(m, -1), 2)
}

func TestStateTransitions(t *testing.T) {
	c := newTestCatalog(t)
	assert.Equal(t, StateEmpty, c.State())

	require.NoError(t, c.Create(t.TempDir(), "db"))
	assert.Equal(t, StateCreated, c.State())

	v := c.Version()
	require.NoError(t, c.AddImage(blob(0, 0, 4), "a", false))
	require.NoError(t, c.AddImage(blob(8, 8, 4), "b", false))
	assert.Equal(t, StatePopulated, c.State())
	assert.Greater(t, c.Version(), v)

	require.NoError(t, c.BuildVocabularyTree(2, 1))
	assert.Equal(t, StateIndexed, c.State())

	require.NoError(t, c.BuildHashTable())
	assert.Equal(t, StateHashed, c.State())

	require.NoError(t, c.Save(context.Background()))
	assert.Equal(t, StatePersisted, c.State())
	assert.Equal(t, "persisted", c.Stats().State)

	c.Clear()
	assert.Equal(t, StateEmpty, c.State())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.Stats().Leaves)
}

func TestBuildRequiresRecords(t *testing.T) {
	c := newTestCatalog(t)
	assert.ErrorIs(t, c.BuildVocabularyTree(2, 1), pkgerrors.ErrEmptyCatalog)
	assert.ErrorIs(t, c.BuildHashTable(), pkgerrors.ErrVocabularyNotBuilt)
}

func TestAddFileList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	var paths, names []string
	for i, d := range []feature.DescriptorSet{blob(0, 0, 4), blob(10, 10, 4)} {
		p := filepath.Join(dir, feature.RecordName(i)+".dsc")
		require.NoError(t, feature.WriteDescriptorFile(p, d))
		paths = append(paths, p)
		names = append(names, feature.RecordName(i))
	}

	c := newTestCatalog(t)
	src := feature.NewFileSource(2)

	err := c.AddFileList(ctx, src, paths, names[:1])
	assert.ErrorIs(t, err, pkgerrors.ErrMisMatchNames)

	require.NoError(t, c.AddFileList(ctx, src, paths, names))
	assert.Equal(t, names, c.Names())

	err = c.AddFileList(ctx, src, []string{filepath.Join(dir, "missing.dsc")}, []string{"x"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidImage)
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.BuildVocabularyTree(2, 1))
	require.NoError(t, c.BuildHashTable())
	matches, err := c.SearchFile(ctx, src, paths[1])
	require.NoError(t, err)
	assert.Equal(t, "i0000001", matches[0].Name)
}
