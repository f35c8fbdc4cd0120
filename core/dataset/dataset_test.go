package dataset

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	n, err := ParseName("spiral")
	require.NoError(t, err)
	assert.Equal(t, Spiral, n)

	n, err = ParseName("XOR")
	require.NoError(t, err)
	assert.Equal(t, Xor, n)

	_, err = ParseName("moons")
	assert.True(t, errors.Is(err, ErrUnknownDataset))
}

func TestTrainCount(t *testing.T) {
	assert.Equal(t, 7, TrainCount(10, 0.7))
	assert.Equal(t, 80, TrainCount(100, 0.8))
	assert.Equal(t, 3, TrainCount(7, 0.5))
	assert.Equal(t, 0, TrainCount(0, 0.5))
}

func TestGenerateShapes(t *testing.T) {
	for _, name := range Names {
		obs, err := Generate(name, 100, 0.5, rand.New(rand.NewSource(1)))
		require.NoError(t, err, name)
		assert.Len(t, obs, 100, name)

		positives := 0
		for _, o := range obs {
			assert.Len(t, o.Features, 2)
			assert.Contains(t, []int{LabelNegative, LabelPositive}, o.Label)
			if o.IsPositive() {
				positives++
			}
		}
		assert.Greater(t, positives, 0, name)
		assert.Less(t, positives, 100, name)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	a, err := Generate(Spiral, 50, 0.3, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, err := Generate(Spiral, 50, 0.3, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGeneratedSourceCaches(t *testing.T) {
	gs := NewGeneratedSource(40, 0.5, 7)
	a, err := gs.Load(Circle)
	require.NoError(t, err)
	b, err := gs.Load(Circle)
	require.NoError(t, err)
	assert.Equal(t, &a[0], &b[0])
}

func TestFileSourceRoundTrip(t *testing.T) {
	fs := &FileSource{Dir: t.TempDir()}
	obs, err := Generate(Xor, 20, 0, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	require.NoError(t, fs.Save(Xor, obs))

	loaded, err := fs.Load(Xor)
	require.NoError(t, err)
	assert.Equal(t, obs, loaded)

	_, err = fs.Load(Gaussian)
	assert.Error(t, err)
}

func TestDecodeRejectsBadLabels(t *testing.T) {
	_, err := Decode([]byte(`[{"features":[1,2],"label":-1}]`))
	assert.Error(t, err)

	_, err = Decode([]byte(`[{"features":[1,2],"label":1},{"features":[1],"label":0}]`))
	assert.Error(t, err)
}
