package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/rolekeeper/internal/catalog"
	"github.com/faucetdb/rolekeeper/internal/config"
)

const (
	roleOptionsURI   = "rolekeeper://role-options"
	adminURIPrefix   = "rolekeeper://admins/"
	adminURITemplate = adminURIPrefix + "{id}"
)

// registerResources adds read-only documents clients can load into context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			roleOptionsURI,
			"Role Options",
			mcp.WithResourceDescription(
				"Assignable roles with their default permissions and access levels, "+
					"and the permission catalog grouped by module.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleRoleOptionsResource,
	)

	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			adminURITemplate,
			"Admin Account",
			mcp.WithTemplateDescription("One admin account with its role, permissions and version."),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleAdminResource,
	)
}

func (s *MCPServer) handleRoleOptionsResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	return jsonContents(roleOptionsURI, catalog.RoleOptions())
}

// handleAdminResource serves rolekeeper://admins/{id}.
func (s *MCPServer) handleAdminResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	if _, err := s.actor(ctx, false); err != nil {
		return nil, err
	}

	uri := request.Params.URI
	raw := strings.TrimPrefix(uri, adminURIPrefix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if raw == uri || err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid admin URI %q: expected %s", uri, adminURITemplate)
	}

	admin, err := s.store.GetAdmin(ctx, id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, fmt.Errorf("admin %d not found", id)
		}
		return nil, fmt.Errorf("load admin %d: %w", id, err)
	}
	return jsonContents(uri, viewOf(admin))
}

func jsonContents(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
