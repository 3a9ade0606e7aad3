package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/mdsim/internal/engine"
)

var ErrInvalidID = errors.New("storage: invalid snapshot id")

const (
	snapshotFile = "snapshot.json"
	metadataFile = "metadata.json"
	seriesFile   = "diagnostics.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type Metadata struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Preset        string    `json:"preset,omitempty"`
	ParticleCount int       `json:"particleCount"`
	Time          float64   `json:"time"`
	Steps         int64     `json:"steps"`
	Integrator    string    `json:"integrator"`
	Strategy      string    `json:"strategy"`
	EnergyDrift   float64   `json:"energyDrift,omitempty"`
	HasSeries     bool      `json:"hasSeries"`
}

// Save snapshots e under a fresh ID. When rec is non-nil its diagnostics
// series is stored alongside as CSV.
func (s *Store) Save(e *engine.Engine, rec *engine.Recorder) (string, error) {
	snap := Take(e)
	if err := snap.checkFinite(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	dir := filepath.Join(s.baseDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	meta := Metadata{
		ID:            id,
		Timestamp:     time.Now(),
		Preset:        snap.Config.Name,
		ParticleCount: len(snap.Masses),
		Time:          snap.Time,
		Steps:         snap.Step,
		Integrator:    snap.Config.Runtime.Integrator,
		Strategy:      snap.Config.Neighbor.Strategy,
	}
	if rec != nil && rec.Len() > 0 {
		meta.EnergyDrift = rec.EnergyDrift()
		meta.HasSeries = true
		if err := s.writeFile(dir, seriesFile, func(f *os.File) error {
			return WriteSeriesCSV(f, rec.Series())
		}); err != nil {
			return "", err
		}
	}

	if err := s.writeFile(dir, snapshotFile, func(f *os.File) error {
		return Encode(f, snap)
	}); err != nil {
		return "", err
	}
	if err := s.writeFile(dir, metadataFile, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) writeFile(dir, name string, write func(f *os.File) error) error {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns the metadata of every stored snapshot, oldest first.
// Directories without readable metadata are skipped.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Metadata{}, nil
		}
		return nil, err
	}

	runs := make([]Metadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.LoadMetadata(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) dir(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.baseDir, id), nil
}

func (s *Store) LoadMetadata(id string) (*Metadata, error) {
	dir, err := s.dir(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) Load(id string) (*Snapshot, error) {
	dir, err := s.dir(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(dir, snapshotFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// LoadSeries reads the diagnostics series saved with a snapshot.
func (s *Store) LoadSeries(id string) (engine.Series, error) {
	dir, err := s.dir(id)
	if err != nil {
		return engine.Series{}, err
	}
	f, err := os.Open(filepath.Join(dir, seriesFile))
	if err != nil {
		return engine.Series{}, err
	}
	defer f.Close()
	return ReadSeriesCSV(f)
}
