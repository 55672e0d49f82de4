// Package mcp exposes package analysis as an MCP tool so coding agents and
// MCP-capable clients can request verdicts directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/packhound/packhound"
	apihttp "github.com/packhound/packhound/pkg/adapters/http"
	"github.com/packhound/packhound/pkg/domain"
)

// AnalyzeResponse is the structured tool result.
type AnalyzeResponse struct {
	Verdict    domain.Verdict      `json:"verdict" jsonschema_description:"Final verdict: benign or malicious"`
	Report     *domain.FinalReport `json:"report,omitempty" jsonschema_description:"Structured verdict record"`
	ReportText string              `json:"report_text,omitempty" jsonschema_description:"Free-text final report"`
	StepsLeft  int                 `json:"steps_left" jsonschema_description:"Unused portion of the run's step budget"`
}

// Server wraps an Analyzer and exposes it as an MCP server.
type Server struct {
	analyzer  apihttp.Analyzer
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(analyzer apihttp.Analyzer) *Server {
	s := &Server{
		analyzer:  analyzer,
		mcpServer: server.NewMCPServer("packhound-mcp", strings.TrimSpace(packhound.Version)),
	}
	s.registerTools()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		fmt.Println("\nShutdown signal received, shutting down server...")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	analyzeTool := mcp.NewTool("analyze_package",
		mcp.WithDescription("Run a full security analysis of a software package's entry-point source files and return the verdict."),
		mcp.WithString("package_name", mcp.Required(), mcp.Description("Name of the package under analysis")),
		mcp.WithString("source_units", mcp.Required(), mcp.Description(`JSON array of {"filename": ..., "code": ...} objects covering the entry-point files`)),
		mcp.WithOutputSchema[AnalyzeResponse](),
	)
	s.mcpServer.AddTool(analyzeTool, mcp.NewStructuredToolHandler(s.handleAnalyze))
}

func (s *Server) handleAnalyze(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (AnalyzeResponse, error) {
	packageName, _ := args["package_name"].(string)
	if packageName == "" {
		return AnalyzeResponse{}, fmt.Errorf("package_name is required")
	}

	unitsJSON, _ := args["source_units"].(string)
	var units []domain.SourceUnit
	if err := json.Unmarshal([]byte(unitsJSON), &units); err != nil {
		return AnalyzeResponse{}, fmt.Errorf("source_units must be a JSON array of source units: %w", err)
	}
	if len(units) == 0 {
		return AnalyzeResponse{}, fmt.Errorf("source_units must not be empty")
	}

	state, err := s.analyzer.Analyze(ctx, packageName, units)
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("analysis failed: %w", err)
	}

	resp := AnalyzeResponse{
		Report:     state.FinalReport,
		ReportText: state.FinalReportText,
		StepsLeft:  state.RemainingSteps,
	}
	if state.FinalReport != nil {
		resp.Verdict = state.FinalReport.Verdict
	}
	return resp, nil
}
