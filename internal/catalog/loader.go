package catalog

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/cohort-outreach-mcp-server/internal/domain"
)

// catalogFile mirrors the on-disk catalog layout.
type catalogFile struct {
	Version       string                    `mapstructure:"version"`
	Cohorts       []domain.CohortDefinition `mapstructure:"cohorts"`
	Interventions []domain.Intervention     `mapstructure:"interventions"`
}

// LoadFile reads a cohort catalog from a YAML file. The loaded catalog is
// validated the same way as the built-in defaults.
func LoadFile(path string, logger *logrus.Logger) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file catalogFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	cat, err := New(file.Version, file.Cohorts, file.Interventions)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"path":          path,
		"version":       cat.Version(),
		"cohorts":       len(cat.Cohorts()),
		"interventions": len(cat.Interventions()),
	}).Info("Cohort catalog loaded")

	return cat, nil
}

// Load returns the catalog at path if one is configured, otherwise the
// built-in defaults. This is the single load point: the returned catalog is
// immutable for the process lifetime.
func Load(path string, logger *logrus.Logger) (*Catalog, error) {
	if path == "" {
		cat, err := Default()
		if err != nil {
			return nil, err
		}
		logger.WithField("version", cat.Version()).Info("Using built-in cohort catalog")
		return cat, nil
	}
	return LoadFile(path, logger)
}
