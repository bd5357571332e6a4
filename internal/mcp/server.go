package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"invsim/internal/config"
	"invsim/internal/store"
)

// Server holds the state shared by every tool call: the configuration defaults and the catalogs
// prepared so far.
type Server struct {
	cfg     *config.AppConfig
	store   *store.Store
	version string
}

// NewServer creates a new MCP server.
func NewServer(cfg *config.AppConfig, st *store.Store, version string) *Server {
	return &Server{cfg: cfg, store: st, version: version}
}

// Build registers every tool on a fresh protocol server.
func (s *Server) Build() (*sdk.Server, error) {
	srv := sdk.NewServer(&sdk.Implementation{Name: "invsim", Version: s.version}, nil)

	decomposeSchema, err := inputSchema[DecomposeInput](nil)
	if err != nil {
		return nil, err
	}
	forecastSchema, err := inputSchema[ForecastInput](nil)
	if err != nil {
		return nil, err
	}
	simulateSchema, err := inputSchema[SimulateInput](map[string][]any{
		"demand_model": demandModels(),
	})
	if err != nil {
		return nil, err
	}

	sdk.AddTool(srv, &sdk.Tool{
		Name:        "decompose_catalog",
		Description: decomposeDescription,
		InputSchema: decomposeSchema,
	}, toolHandler("decompose_catalog", s.handleDecomposeCatalog))
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "forecast_demand",
		Description: forecastDescription,
		InputSchema: forecastSchema,
	}, toolHandler("forecast_demand", s.handleForecastDemand))
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "simulate_policy",
		Description: simulateDescription,
		InputSchema: simulateSchema,
	}, toolHandler("simulate_policy", s.handleSimulatePolicy))

	return srv, nil
}

// Serve runs the protocol over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv, err := s.Build()
	if err != nil {
		return err
	}
	log.Info().Str("version", s.version).Msg("MCP server listening on stdio")
	return srv.Run(ctx, &sdk.StdioTransport{})
}

// inputSchema infers the schema of T and restricts the named properties to fixed values.
func inputSchema[T any](enums map[string][]any) (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, err
	}
	for name, values := range enums {
		prop, ok := schema.Properties[name]
		if !ok {
			return nil, fmt.Errorf("schema has no property %q", name)
		}
		prop.Enum = values
	}
	return schema, nil
}

// toolHandler adapts a handler to the protocol. Errors become tool results flagged as errors so
// the client can read the message.
func toolHandler[In any](name string, h func(context.Context, In) (ResponseEnvelope, error)) sdk.ToolHandlerFor[In, ResponseEnvelope] {
	return func(ctx context.Context, _ *sdk.CallToolRequest, in In) (*sdk.CallToolResult, ResponseEnvelope, error) {
		log.Debug().Str("tool", name).Interface("arguments", in).Msg("Tool call")
		env, err := h(ctx, in)
		if err != nil {
			log.Error().Err(err).Str("tool", name).Msg("Tool call failed")
			return nil, ResponseEnvelope{}, err
		}
		return nil, env, nil
	}
}
