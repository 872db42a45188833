package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type AllianceEntry struct {
	Id   string `yaml:"id"`
	Name string `yaml:"name"`
	Rif  string `yaml:"rif"`
}

type AllianceDirectory struct {
	Alliances []AllianceEntry `yaml:"alliances"`
}

// LoadAllianceDirectory reads the alliance directory file. Relative paths are
// resolved against the working directory.
func LoadAllianceDirectory(alliancesFile string) ([]AllianceEntry, error) {
	var alliancesPath string
	if filepath.IsAbs(alliancesFile) {
		alliancesPath = alliancesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		alliancesPath = filepath.Join(wd, alliancesFile)
	}

	data, err := os.ReadFile(alliancesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", alliancesFile, err)
	}

	var directory AllianceDirectory
	if err := yaml.Unmarshal(data, &directory); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", alliancesFile, err)
	}

	seen := make(map[string]bool, len(directory.Alliances))
	for i, entry := range directory.Alliances {
		if strings.TrimSpace(entry.Id) == "" {
			return nil, fmt.Errorf("alliance at index %d missing id", i)
		}
		if strings.TrimSpace(entry.Name) == "" {
			return nil, fmt.Errorf("alliance at index %d missing name", i)
		}
		if seen[entry.Id] {
			return nil, fmt.Errorf("alliance %s listed more than once", entry.Id)
		}
		seen[entry.Id] = true
	}

	return directory.Alliances, nil
}

// SyncAlliances creates every directory entry the store does not know yet.
// Existing alliances are left untouched so their debt and version survive.
func SyncAlliances(ctx context.Context, st store.Querier, entries []AllianceEntry) (int, error) {
	created := 0
	for _, entry := range entries {
		_, err := st.GetAlliance(ctx, entry.Id)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return created, err
		}

		alliance := &models.Alliance{Id: entry.Id, Name: entry.Name, Rif: entry.Rif}
		if err := st.CreateAlliance(ctx, alliance); err != nil {
			if errors.Is(err, store.ErrDuplicateAlliance) {
				continue
			}
			return created, err
		}
		created++
		zap.L().Info("Alliance registered from directory",
			zap.String("alliance_id", alliance.Id),
			zap.String("name", alliance.Name))
	}
	return created, nil
}

// ResolveAlliances returns the alliance named by idFilter, or all alliances
// when the filter is empty.
func ResolveAlliances(ctx context.Context, st store.Querier, idFilter string, logger *zap.Logger) ([]models.Alliance, error) {
	if idFilter != "" {
		logger.Info("Looking up alliance", zap.String("alliance_id", idFilter))
		alliance, err := st.GetAlliance(ctx, idFilter)
		if err != nil {
			return nil, fmt.Errorf("alliance not found: %w", err)
		}
		return []models.Alliance{*alliance}, nil
	}

	alliances, err := st.ListAlliances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get alliances: %w", err)
	}
	logger.Info("Retrieved alliances", zap.Int("count", len(alliances)))
	return alliances, nil
}
