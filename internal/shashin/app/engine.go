package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bdobrica/Shashin/internal/shashin/catalog"
	"github.com/bdobrica/Shashin/internal/shashin/settings"
	"github.com/bdobrica/Shashin/internal/shashin/snapshot"
)

// EngineConfig selects the catalog, report layout and session lifetime.
// Every field is optional.
type EngineConfig struct {
	// CatalogPath points to a YAML catalog replacing the embedded one.
	CatalogPath string
	// TemplatePath points to a report template replacing the embedded one.
	TemplatePath string
	// DefaultCountry overrides the constant default of the country field.
	DefaultCountry string
	StatsURL       string
	// SessionTTL evicts sessions idle for longer. Zero keeps them forever.
	SessionTTL time.Duration
	// Rand is the random source for sampling. Nil uses the process-wide
	// generator.
	Rand settings.Rand
}

// Engine bundles the pieces that turn chat commands into reports.
type Engine struct {
	Catalog   *catalog.Catalog
	Sessions  *settings.Store
	Generator *snapshot.Generator
}

// NewEngine loads the catalog and template and creates an empty session
// store.
func NewEngine(cfg EngineConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		cat = loaded
		logger.Info("catalog loaded", "path", cfg.CatalogPath, "fields", len(cat.Fields()))
	}
	if cfg.DefaultCountry != "" {
		withCountry, err := cat.WithDefaultValue("country", cfg.DefaultCountry)
		if err != nil {
			return nil, fmt.Errorf("default country: %w", err)
		}
		cat = withCountry
	}

	var (
		ren *snapshot.Renderer
		err error
	)
	if cfg.TemplatePath != "" {
		ren, err = snapshot.NewRendererFS(os.DirFS(filepath.Dir(cfg.TemplatePath)), filepath.Base(cfg.TemplatePath), cat, cfg.StatsURL)
	} else {
		ren, err = snapshot.NewRenderer(cat, cfg.StatsURL)
	}
	if err != nil {
		return nil, err
	}

	return &Engine{
		Catalog:   cat,
		Sessions:  settings.NewStore(cfg.SessionTTL),
		Generator: snapshot.NewGenerator(snapshot.NewResolver(cat, cfg.Rand), ren, logger),
	}, nil
}
