// Package variety resolves per-variety, per-stage optimal/critical growing
// ranges. Lookups never fail: a missing variety or stage falls back through
// progressively more generic bounds, and the result records which level it
// came from.
package variety

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hydrowatch/hydrowatch-backend/internal/models"
	"gopkg.in/yaml.v3"
)

// Generic lettuce defaults, used when no variety profile matches.
var (
	GenericPH = models.RangeBounds{OptimalMin: 5.8, OptimalMax: 6.5, CriticalMin: 5.5, CriticalMax: 7.0}
	GenericEC = models.RangeBounds{OptimalMin: 1.2, OptimalMax: 2.0, CriticalMin: 0.8, CriticalMax: 2.5}
)

const resolveCacheSize = 256

// Store holds variety profiles loaded from a YAML file. Profiles are read
// once at startup; resolution results are memoized in an LRU cache since the
// same (variety, stage) pair is resolved on every nutrient-bearing reading.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]models.VarietyProfile
	cache    *lru.Cache[string, models.ResolvedRanges]
	logger   *slog.Logger
}

// profileFile is the on-disk YAML layout.
type profileFile struct {
	Varieties []models.VarietyProfile `yaml:"varieties"`
}

// NewStore loads profiles from path. A missing or empty path yields a store
// that resolves everything to the generic defaults — absence of
// configuration is not an error.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, models.ResolvedRanges](resolveCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create variety cache: %w", err)
	}

	s := &Store{
		profiles: make(map[string]models.VarietyProfile),
		cache:    cache,
		logger:   logger,
	}

	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("variety profile file not found; using generic defaults", "path", path)
			return s, nil
		}
		return nil, fmt.Errorf("read variety profiles: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse variety profiles: %w", err)
	}
	for _, p := range file.Varieties {
		s.profiles[normalize(p.Name)] = p
	}
	logger.Info("variety profiles loaded", "path", path, "count", len(s.profiles))
	return s, nil
}

// Put registers or replaces a profile. Exposed for tests and for config
// reload paths; invalidates the resolution cache.
func (s *Store) Put(p models.VarietyProfile) {
	s.mu.Lock()
	s.profiles[normalize(p.Name)] = p
	s.mu.Unlock()
	s.cache.Purge()
}

// Resolve returns the scoring bounds for a variety and growth stage.
// Fallback order: variety+stage EC override → variety bounds → generic
// lettuce defaults. The provenance field records which one was used.
func (s *Store) Resolve(varietyName, stage string) models.ResolvedRanges {
	key := normalize(varietyName) + "|" + normalize(stage)
	if cached, ok := s.cache.Get(key); ok {
		return cached
	}

	resolved := s.resolve(varietyName, stage)
	s.cache.Add(key, resolved)
	return resolved
}

func (s *Store) resolve(varietyName, stage string) models.ResolvedRanges {
	s.mu.RLock()
	profile, ok := s.profiles[normalize(varietyName)]
	s.mu.RUnlock()

	if !ok {
		return models.ResolvedRanges{
			Variety:    varietyName,
			Stage:      stage,
			PH:         GenericPH,
			EC:         GenericEC,
			Provenance: models.ProvenanceGeneric,
		}
	}

	resolved := models.ResolvedRanges{
		Variety:    profile.Name,
		Stage:      stage,
		PH:         profile.PH,
		EC:         profile.EC,
		Provenance: models.ProvenanceVariety,
	}

	if stage != "" {
		if override, ok := profile.Stages[normalize(stage)]; ok && override.EC != nil {
			resolved.EC = *override.EC
			resolved.Provenance = models.ProvenanceVarietyStage
		}
	}
	return resolved
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
