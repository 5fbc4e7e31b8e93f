package parsers

import (
	"os"

	"gopkg.in/yaml.v3"

	"ledger-location-reconciler/internal/models"
	apperrors "ledger-location-reconciler/pkg/errors"
	"ledger-location-reconciler/pkg/logger"
)

// aliasFile is the YAML document shape of the operator-curated alias
// table.
type aliasFile struct {
	Aliases []models.AliasEntry `yaml:"aliases"`
}

// ParseAliasTable loads the alias table from a YAML file. A missing or
// empty path degrades to an empty table: runs without a curated table
// fall through to the automatic matching stages.
func ParseAliasTable(path string) (*models.AliasTable, error) {
	log := logger.WithComponent("parsers")

	if path == "" {
		return models.EmptyAliasTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("file", path).Warn("alias file not found, continuing without aliases")
			return models.EmptyAliasTable(), nil
		}
		return nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
	}

	var doc aliasFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, path, 0, err.Error(), err)
	}

	table := models.NewAliasTable(doc.Aliases)
	log.WithFields(logger.Fields{
		"file":    path,
		"entries": table.Len(),
	}).Info("alias table loaded")

	return table, nil
}
