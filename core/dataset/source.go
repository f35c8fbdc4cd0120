package dataset

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// FileSource reads saved datasets from Dir.
type FileSource struct {
	Dir string
}

func (fs *FileSource) Load(name Name) ([]Observation, error) {
	path := filepath.Join(fs.Dir, name.FileName())
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read dataset %s", name)
	}
	return Decode(data)
}

// Save writes obs where Load will find it.
func (fs *FileSource) Save(name Name, obs []Observation) error {
	if err := os.MkdirAll(fs.Dir, 0o755); err != nil {
		return errors.Wrap(err, "create dataset dir")
	}
	data, err := Encode(obs)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(filepath.Join(fs.Dir, name.FileName()), []byte(data), 0o644),
		"write dataset %s", name)
}

// GeneratedSource synthesizes datasets on first use and keeps them, so a
// dataset keeps its ordering across runs.
type GeneratedSource struct {
	Samples int
	Noise   float64
	Seed    int64

	mutex sync.Mutex
	cache map[Name][]Observation
}

func NewGeneratedSource(samples int, noise float64, seed int64) *GeneratedSource {
	return &GeneratedSource{
		Samples: samples,
		Noise:   noise,
		Seed:    seed,
		cache:   make(map[Name][]Observation),
	}
}

func (gs *GeneratedSource) Load(name Name) ([]Observation, error) {
	gs.mutex.Lock()
	defer gs.mutex.Unlock()

	if obs, ok := gs.cache[name]; ok {
		return obs, nil
	}
	rng := rand.New(rand.NewSource(gs.Seed + int64(indexOf(name))))
	obs, err := Generate(name, gs.Samples, gs.Noise, rng)
	if err != nil {
		return nil, err
	}
	gs.cache[name] = obs
	return obs, nil
}

func indexOf(name Name) int {
	for i, n := range Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Generate builds numSamples shuffled observations of the named shape.
func Generate(name Name, numSamples int, noise float64, rng *rand.Rand) ([]Observation, error) {
	if numSamples < 2 {
		return nil, errors.Errorf("need at least 2 samples, got %d", numSamples)
	}
	var points []Observation
	half := numSamples / 2

	switch name {
	case Gaussian:
		gauss := func(cx, cy float64, label int) Observation {
			return point(cx+rng.NormFloat64()*noise, cy+rng.NormFloat64()*noise, label)
		}
		for i := 0; i < half; i++ {
			points = append(points, gauss(-2, 3, LabelNegative))
		}
		for i := 0; i < half; i++ {
			points = append(points, gauss(2, -3, LabelPositive))
		}
	case Circle:
		const outerRadius, innerRadius = 10.0, 8.0
		for i := 0; i < half; i++ {
			theta := linspace(0, 2*math.Pi, half, i)
			points = append(points,
				point(innerRadius*math.Cos(theta)+rng.Float64(), innerRadius*math.Sin(theta)+rng.Float64(), LabelNegative),
				point(outerRadius*math.Cos(theta)+rng.Float64()*2, outerRadius*math.Sin(theta)+rng.Float64()*2, LabelPositive))
		}
	case Spiral:
		spiral := func(i int, deltaT float64, label int) Observation {
			r := float64(i) / float64(half) * 10
			t := 1.75*float64(i)/float64(half)*2*math.Pi + deltaT
			return point(r*math.Sin(t)+(rng.Float64()*2-1)*noise, r*math.Cos(t)+(rng.Float64()*2-1)*noise, label)
		}
		for i := 0; i < half; i++ {
			points = append(points, spiral(i, 0, LabelPositive), spiral(i, math.Pi, LabelNegative))
		}
	case Xor:
		for i := 0; i < numSamples; i++ {
			x := rng.Float64() - 0.5
			y := rng.Float64() - 0.5
			label := LabelPositive
			if x*y > 0 {
				label = LabelNegative
			}
			points = append(points, point(x, y, label))
		}
	default:
		return nil, errors.Wrapf(ErrUnknownDataset, "%q", name)
	}

	Shuffle(points, rng)
	return points, nil
}

func point(x, y float64, label int) Observation {
	return Observation{Features: []float64{x, y}, Label: label}
}

// linspace returns the i-th of n evenly spaced values in [start, stop].
func linspace(start, stop float64, n, i int) float64 {
	if n <= 1 {
		return start
	}
	return start + (stop-start)*float64(i)/float64(n-1)
}

// Shuffle is an in-place Fisher-Yates shuffle.
func Shuffle(obs []Observation, rng *rand.Rand) {
	for counter := len(obs); counter > 0; counter-- {
		index := rng.Intn(counter)
		obs[counter-1], obs[index] = obs[index], obs[counter-1]
	}
}
