package mcp

import (
	"path/filepath"

	"invsim/internal/store"
)

// ResponseEnvelope is the structured result of every tool.
type ResponseEnvelope struct {
	Data     any      `json:"data"`
	Insights []string `json:"insights,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Chart    string   `json:"chart,omitempty"`
}

// WrapResponse builds an envelope, dropping empty sections.
func WrapResponse(data any, chart string, insights, warnings []string) ResponseEnvelope {
	return ResponseEnvelope{
		Data:     data,
		Insights: insights,
		Warnings: warnings,
		Chart:    chart,
	}
}

// override copies v over the configured value in dst when the caller supplied it.
func override[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// datasetOrDefault falls back to the dataset of the configured observation file.
func (s *Server) datasetOrDefault(name string) string {
	if name != "" {
		return name
	}
	if s.cfg.Ingest.DatasetPath == "" {
		return ""
	}
	return store.DatasetName(s.cfg.Ingest.DatasetPath)
}

func (s *Server) resultsDir() string {
	return filepath.Join(s.cfg.DataPath, "results")
}
