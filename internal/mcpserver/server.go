// Package mcpserver exposes the federation controller as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/i474232898/datacommons-federation/internal/federation"
)

// Server wraps the federation Service and exposes it via Model Context Protocol
type Server struct {
	service *federation.Service
	server  *server.MCPServer
	log     *zap.Logger
}

// New creates the MCP server and registers its tools
func New(service *federation.Service, version string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.L()
	}
	s := &Server{
		service: service,
		log:     log,
		server: server.NewMCPServer(
			"Data Commons",
			version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying protocol server
func (s *Server) MCPServer() *server.MCPServer {
	return s.server
}

// ServeStdio serves requests over stdin/stdout until stdin closes
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.server)
}

// NewSSEServer returns an SSE transport bound to baseURL
func (s *Server) NewSSEServer(baseURL string) *server.SSEServer {
	return server.NewSSEServer(s.server, server.WithBaseURL(baseURL))
}

func (s *Server) registerTools() {
	s.server.AddTool(mcp.NewTool("fetch_place_dcid",
		mcp.WithDescription("Resolve a place name to Data Commons place identifiers, with types and enclosing regions"),
		mcp.WithString("place_name",
			mcp.Required(),
			mcp.Description("Place name, e.g. \"California\" or \"Paris, France\""),
		),
	), s.handleFetchPlace)

	s.server.AddTool(mcp.NewTool("fetch_child_place_type_dcids",
		mcp.WithDescription("List administrative area types that have places contained in the given place"),
		mcp.WithString("place_dcid",
			mcp.Required(),
			mcp.Description("Parent place identifier, e.g. \"country/USA\""),
		),
	), s.handleChildPlaceTypes)

	s.server.AddTool(mcp.NewTool("fetch_stat_vars",
		mcp.WithDescription("Resolve statistical variable descriptions to variable identifiers across all configured Data Commons"),
		mcp.WithArray("stat_var_descs",
			mcp.Required(),
			mcp.Description("Natural-language variable descriptions"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	), s.handleStatVars)

	s.server.AddTool(mcp.NewTool("fetch_observations",
		mcp.WithDescription("Fetch observations for variables and places, merged across all configured Data Commons. "+
			"Supply either place_dcids or both parent_place_dcid and child_place_type_dcid."),
		mcp.WithArray("variable_dcids",
			mcp.Required(),
			mcp.Description("Variable identifiers"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("place_dcids",
			mcp.Description("Place identifiers"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("parent_place_dcid",
			mcp.Description("Parent place identifier for child place queries"),
		),
		mcp.WithString("child_place_type_dcid",
			mcp.Description("Child place type, e.g. \"County\""),
		),
		mcp.WithString("facet_id_override",
			mcp.Description("Restrict results to this facet (data source) id"),
		),
		mcp.WithString("date",
			mcp.Description("\"all\" (default), \"latest\", or a date such as 2020 or 2020-05"),
		),
	), s.handleObservations)
}

func (s *Server) handleFetchPlace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("place_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	places, err := s.service.ResolvePlaces(ctx, []string{name})
	if err != nil {
		s.log.Warn("fetch_place_dcid failed", zap.String("place_name", name), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve place: %v", err)), nil
	}
	if len(places[name]) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No place found for %q", name)), nil
	}
	return jsonResult(map[string]any{"queryToPlaces": places})
}

func (s *Server) handleChildPlaceTypes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dcid, err := request.RequireString("place_dcid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	types, err := s.service.ChildPlaceTypes(ctx, dcid)
	if err != nil {
		s.log.Warn("fetch_child_place_type_dcids failed", zap.String("place_dcid", dcid), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch child place types: %v", err)), nil
	}
	return jsonResult(map[string]any{"placeDcid": dcid, "childPlaceTypes": types})
}

func (s *Server) handleStatVars(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	descs := request.GetStringSlice("stat_var_descs", nil)
	if len(descs) == 0 {
		return mcp.NewToolResultError("stat_var_descs must contain at least one description"), nil
	}

	return jsonResult(map[string]any{"matches": s.service.ResolveVariables(ctx, descs)})
}

func (s *Server) handleObservations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := federation.SelectorInput{
		VariableIDs:    request.GetStringSlice("variable_dcids", nil),
		PlaceIDs:       request.GetStringSlice("place_dcids", nil),
		ParentPlaceID:  request.GetString("parent_place_dcid", ""),
		ChildPlaceType: request.GetString("child_place_type_dcid", ""),
		Date:           request.GetString("date", ""),
	}
	if facet := request.GetString("facet_id_override", ""); facet != "" {
		in.FacetIDs = []string{facet}
	}

	sel, err := federation.NewObservationSelector(in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.service.FetchObservations(ctx, sel)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return mcp.NewToolResultError("Observation fetch did not complete"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch observations: %v", err)), nil
	}
	return jsonResult(resp)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
