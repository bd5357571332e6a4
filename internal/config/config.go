package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"invsim/internal/demand"
)

// Environment keys. Command-line flags are bound onto the same keys.
const (
	KeyDataPath           = "DATA_PATH"
	KeyDatasetPath        = "DATASET_PATH"
	KeyRelevancePath      = "RELEVANCE_PATH"
	KeyStorageCostPath    = "STORAGE_COST_PATH"
	KeyBaseYear           = "BASE_YEAR"
	KeyYears              = "YEARS"
	KeyCleaningZ          = "CLEANING_Z"
	KeyPrepareWorkers     = "PREPARE_WORKERS"
	KeyTargetsPath        = "TARGETS_PATH"
	KeyStartWeek          = "START_WEEK"
	KeyEndWeek            = "END_WEEK"
	KeyRuns               = "RUNS"
	KeyDemandModel        = "DEMAND_MODEL"
	KeySeed               = "SEED"
	KeyHoldingMultiplier  = "HOLDING_MULTIPLIER"
	KeyDiscardPenalty     = "DISCARD_PENALTY"
	KeyForecastMultiplier = "FORECAST_MULTIPLIER"
	KeyWorkers            = "WORKERS"
	KeyExportResults      = "EXPORT_RESULTS"
	KeyExportPath         = "EXPORT_PATH"
	KeyOpenReport         = "OPEN_REPORT"
)

// IngestConfig locates the observation history and its lookup tables.
type IngestConfig struct {
	DatasetPath     string
	RelevancePath   string
	StorageCostPath string
	BaseYear        int
	Years           int
}

// CleaningConfig tunes cleaning and decomposition.
type CleaningConfig struct {
	Z       float64
	Workers int
}

// SimulationConfig holds every recognised simulation option.
type SimulationConfig struct {
	TargetsPath        string
	StartWeek          int
	EndWeek            int
	Runs               int
	DemandModel        demand.Model
	Seed               uint64
	HoldingMultiplier  float64
	DiscardPenalty     float64
	ForecastMultiplier float64
	Workers            int
	ExportResults      bool
	ExportPath         string
	OpenReport         bool
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DataPath   string
	LogDir     string
	CacheDir   string
	Ingest     IngestConfig
	Cleaning   CleaningConfig
	Simulation SimulationConfig
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBaseYear, 2018)
	v.SetDefault(KeyYears, 2)
	v.SetDefault(KeyCleaningZ, 3.5)
	v.SetDefault(KeyPrepareWorkers, 0)
	v.SetDefault(KeyStartWeek, 0)
	v.SetDefault(KeyEndWeek, 52)
	v.SetDefault(KeyRuns, 100)
	v.SetDefault(KeyDemandModel, demand.Normal.String())
	v.SetDefault(KeySeed, 1234)
	v.SetDefault(KeyHoldingMultiplier, 7.0)
	v.SetDefault(KeyDiscardPenalty, 0.0)
	v.SetDefault(KeyForecastMultiplier, 1.0)
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyExportResults, false)
	v.SetDefault(KeyOpenReport, false)
}

// Load loads the configuration from .env files, environment variables and any flags bound on
// the global viper instance.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory
	exeDir := ""
	if exePath, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	v := viper.GetViper()
	SetDefaults(v)
	v.AutomaticEnv()

	if !v.IsSet(KeyDataPath) {
		if exeDir != "" {
			v.SetDefault(KeyDataPath, exeDir)
		} else {
			v.SetDefault(KeyDataPath, ".")
		}
	}

	cfg, err := FromViper(v)
	if err != nil {
		return nil, err
	}

	// Ensure directories exist
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", cfg.LogDir).Msg("Failed to create log directory")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", cfg.CacheDir).Msg("Failed to create cache directory")
	}
	return cfg, nil
}

// FromViper builds and validates the typed configuration from v.
func FromViper(v *viper.Viper) (*AppConfig, error) {
	dataPath := v.GetString(KeyDataPath)
	if dataPath == "" {
		dataPath = "."
	}

	model, err := demand.ParseModel(v.GetString(KeyDemandModel))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyDemandModel, err)
	}

	cfg := &AppConfig{
		DataPath: dataPath,
		LogDir:   filepath.Join(dataPath, "logs"),
		CacheDir: filepath.Join(dataPath, "cache"),
		Ingest: IngestConfig{
			DatasetPath:     v.GetString(KeyDatasetPath),
			RelevancePath:   v.GetString(KeyRelevancePath),
			StorageCostPath: v.GetString(KeyStorageCostPath),
			BaseYear:        v.GetInt(KeyBaseYear),
			Years:           v.GetInt(KeyYears),
		},
		Cleaning: CleaningConfig{
			Z:       v.GetFloat64(KeyCleaningZ),
			Workers: v.GetInt(KeyPrepareWorkers),
		},
		Simulation: SimulationConfig{
			TargetsPath:        v.GetString(KeyTargetsPath),
			StartWeek:          v.GetInt(KeyStartWeek),
			EndWeek:            v.GetInt(KeyEndWeek),
			Runs:               v.GetInt(KeyRuns),
			DemandModel:        model,
			Seed:               v.GetUint64(KeySeed),
			HoldingMultiplier:  v.GetFloat64(KeyHoldingMultiplier),
			DiscardPenalty:     v.GetFloat64(KeyDiscardPenalty),
			ForecastMultiplier: v.GetFloat64(KeyForecastMultiplier),
			Workers:            v.GetInt(KeyWorkers),
			ExportResults:      v.GetBool(KeyExportResults),
			ExportPath:         v.GetString(KeyExportPath),
			OpenReport:         v.GetBool(KeyOpenReport),
		},
	}

	switch {
	case cfg.Ingest.Years < 1:
		return nil, fmt.Errorf("invalid %s: %d, want at least 1", KeyYears, cfg.Ingest.Years)
	case cfg.Cleaning.Z <= 0:
		return nil, fmt.Errorf("invalid %s: %v, want a positive value", KeyCleaningZ, cfg.Cleaning.Z)
	case cfg.Simulation.Runs < 1:
		return nil, fmt.Errorf("invalid %s: %d, want at least 1", KeyRuns, cfg.Simulation.Runs)
	}
	return cfg, nil
}
