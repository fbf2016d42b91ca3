package batch

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"
)

type seriesProfile struct {
	kind  string
	base  float64
	drift float64
	noise float64
	lo    float64
	hi    float64
}

var simulatedProfiles = []seriesProfile{
	{kind: "DHT22.tempC", base: 28.5, drift: 0.005, noise: 0.3, lo: 18, hi: 45},
	{kind: "DHT22.humidity", base: 62.0, drift: 0.01, noise: 1.2, lo: 15, hi: 98},
	{kind: "DS18B20.soilTempC", base: 24.0, drift: 0.003, noise: 0.25, lo: 10, hi: 40},
	{kind: "Soil.moisturePct", base: 38.0, drift: 0.008, noise: 1.0, lo: 5, hi: 95},
}

// DefaultSite is the device the simulator reports for.
var DefaultSite = Site{Zone: "raviart", Field: "bouake", Device: "esp32-001"}

// Simulator generates demo batches: one-minute random walks for each
// sensor kind, ending at the current time.
type Simulator struct {
	Now    func() time.Time
	Rand   *rand.Rand
	Site   Site
	Points int
}

// NewSimulator creates a new Simulator using wall-clock time.
func NewSimulator() *Simulator {
	return &Simulator{
		Now:    time.Now,
		Rand:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		Site:   DefaultSite,
		Points: 60,
	}
}

// Generate builds a finalized simulated batch.
func (s *Simulator) Generate() Batch {
	now := s.Now().UTC()
	points := s.Points
	if points <= 0 {
		points = 60
	}

	readings := make([]Series, 0, len(simulatedProfiles))
	for _, profile := range simulatedProfiles {
		readings = append(readings, s.walk(profile, now, points))
	}

	batch := Batch{
		Type:      DocumentType,
		Version:   DocumentVersion,
		Source:    SourceSimulated,
		Site:      s.Site,
		Timestamp: now.Format("2006-01-02T15:04:05.000Z"),
		Readings:  readings,
		Meta: map[string]string{
			"note":     "Simulated sensor data for demo",
			"unitTime": "ms since epoch",
		},
	}
	batch.Finalize()
	return batch
}

func (s *Simulator) walk(profile seriesProfile, now time.Time, n int) Series {
	end := now.UnixMilli()
	value := profile.base
	series := Series{Kind: profile.kind, Points: make([]Point, 0, n)}

	for i := 0; i < n; i++ {
		value += profile.drift + profile.noise*s.Rand.NormFloat64()
		value = math.Max(profile.lo, math.Min(profile.hi, value))
		series.Points = append(series.Points, Point{
			T: end - int64(n-1-i)*time.Minute.Milliseconds(),
			V: math.Round(value*100) / 100,
		})
	}
	return series
}

// Write generates a batch and stores it as indented JSON under dir. It
// returns the file path and the batch.
func (s *Simulator) Write(dir string) (string, Batch, error) {
	batch := s.Generate()

	payload, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", Batch{}, fmt.Errorf("failed to encode batch: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", Batch{}, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	name := fmt.Sprintf("wakama-batch-%s.json", s.Now().UTC().Format("2006-01-02T15-04-05-000Z"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", Batch{}, fmt.Errorf("failed to write %s: %w", path, err)
	}

	return path, batch, nil
}
