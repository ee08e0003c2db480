// ABOUTME: MCP resource implementations for the deficit ledger.
// ABOUTME: Provides deficit://today and deficit://month resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/deficit/internal/models"
)

const (
	todayURI = "deficit://today"
	monthURI = "deficit://month"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         todayURI,
		Name:        "Today's Balance",
		Description: "Today's energy balance and the meals behind it",
		MIMEType:    "application/json",
	}, s.handleTodayResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         monthURI,
		Name:        "This Month",
		Description: "Net calories and target success for every recorded day this month",
		MIMEType:    "application/json",
	}, s.handleMonthResource)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func (s *Server) handleTodayResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	_, out, err := s.handleGetDashboard(ctx, nil, dateInput{})
	if err != nil {
		return nil, err
	}

	remaining := out.Summary.TargetSnapshot - out.Summary.NetCalories
	if remaining < 0 {
		remaining = 0
	}

	return jsonResource(todayURI, map[string]any{
		"date":              out.Summary.Date,
		"summary":           out.Summary,
		"meals":             out.Records,
		"deficit_remaining": remaining,
		"target_met":        out.Summary.Stat().IsSuccess,
	})
}

func (s *Server) handleMonthResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	today, err := models.ParseDate(s.ledger.Today())
	if err != nil {
		return nil, err
	}

	_, out, err := s.handleMonthlyStats(ctx, nil, monthlyStatsInput{Year: today.Year(), Month: int(today.Month())})
	if err != nil {
		return nil, err
	}

	return jsonResource(monthURI, map[string]any{
		"month":     models.MonthPrefix(today.Year(), int(today.Month())),
		"days":      out.Days,
		"successes": out.Successes,
		"recorded":  len(out.Days),
	})
}
