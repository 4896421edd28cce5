package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/splitrelay/internal/config"
	"github.com/aristath/splitrelay/internal/database"
)

// InitializeDatabases opens both databases and applies their schemas.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. registry - task rows and result sets (Postgres when REGISTRY_DSN is set)
	registryDB, err := database.New(database.Config{
		Path:    cfg.RegistryPath(),
		Profile: database.ProfileLedger,
		Name:    "registry",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry database: %w", err)
	}
	container.RegistryDB = registryDB

	// 2. portfolio.db - open lots
	portfolioDB, err := database.New(database.Config{
		Path:    cfg.PortfolioPath(),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize portfolio database: %w", err)
	}
	container.PortfolioDB = portfolioDB

	for _, db := range []*database.DB{registryDB, portfolioDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema for %s: %w", db.Name(), err)
		}
	}

	log.Info().
		Str("registry", string(registryDB.Dialect())).
		Str("portfolio", portfolioDB.Path()).
		Msg("Databases initialized")

	return container, nil
}
