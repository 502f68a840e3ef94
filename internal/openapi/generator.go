package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/faucetdb/rolekeeper/internal/catalog"
	"github.com/faucetdb/rolekeeper/internal/model"
)

const apiPrefix = "/api/v1"

// Generate builds the OpenAPI 3.1 document for the admin management API.
func Generate(baseURL, version string) *openapi3.T {
	if version == "" {
		version = "1.0.0"
	}
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Rolekeeper API",
			Description: "Administrator role and permission management with optimistic concurrency.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	doc.Security = openapi3.SecurityRequirements{
		{"bearerAuth": {}},
	}

	doc.Paths = openapi3.NewPaths()

	addComponentSchemas(doc)
	addSessionPaths(doc)
	addAdminPaths(doc)

	doc.Paths.Set(apiPrefix+"/role-options", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"roles"},
			Summary:     "List role options",
			Description: "Assignable roles with their default permission sets, and the permission catalog.",
			OperationID: "getRoleOptions",
			Responses:   newResponses("200", "Role options", ref("RoleOptions"), "401", "500"),
		},
	})

	return doc
}

func addSessionPaths(doc *openapi3.T) {
	noAuth := openapi3.NewSecurityRequirements()
	doc.Paths.Set(apiPrefix+"/session", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"session"},
			Summary:     "Log in",
			Description: "Exchange an email and password for a bearer session token.",
			OperationID: "login",
			Security:    noAuth,
			RequestBody: &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref("LoginRequest")),
			},
			Responses: newResponses("200", "Session token", ref("LoginResponse"), "400", "401", "429", "500"),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{"session"},
			Summary:     "Log out",
			Description: "Acknowledge the end of a session. Tokens are stateless; clients discard them.",
			OperationID: "logout",
			Security:    noAuth,
			Responses:   newResponses("200", "Logged out", &openapi3.SchemaRef{Value: openapi3.NewObjectSchema()}),
		},
	})
}

func addAdminPaths(doc *openapi3.T) {
	idParam := &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("adminId").
			WithDescription("Administrator id.").
			WithSchema(openapi3.NewInt64Schema()),
	}

	doc.Paths.Set(apiPrefix+"/admins", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"admins"},
			Summary:     "List administrators",
			Description: "Administrator records ordered by id, optionally filtered by role.",
			OperationID: "listAdmins",
			Parameters:  listQueryParameters(),
			Responses:   newResponses("200", "List of administrators", ref("AdminList"), "400", "401", "500"),
		},
	})

	updateResponses := newResponses("200", "The record at its new version", ref("Admin"),
		"400", "401", "403", "404", "500")
	conflictDesc := "Version or email conflict. For version conflicts context.current holds the stored record."
	updateResponses.Set("409", errorResponse(conflictDesc))
	tooManyDesc := "Duplicate submission inside the suppression window. See the Retry-After header."
	tooMany := errorResponse(tooManyDesc)
	tooMany.Value.Headers = openapi3.Headers{
		"Retry-After": &openapi3.HeaderRef{
			Value: &openapi3.Header{Parameter: openapi3.Parameter{
				Description: "Seconds to wait before retrying.",
				Schema:      openapi3.NewInt64Schema().NewRef(),
			}},
		},
	}
	updateResponses.Set("429", tooMany)

	doc.Paths.Set(apiPrefix+"/admins/{adminId}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam},
		Get: &openapi3.Operation{
			Tags:        []string{"admins"},
			Summary:     "Get an administrator",
			OperationID: "getAdmin",
			Responses:   newResponses("200", "Administrator record", ref("Admin"), "400", "401", "404", "500"),
		},
		Put: &openapi3.Operation{
			Tags:    []string{"admins"},
			Summary: "Edit an administrator",
			Description: "Change name, email, role or permissions. client_version must equal the stored version. " +
				"Requires a super admin session.",
			OperationID: "updateAdmin",
			RequestBody: &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref("UpdateAdminRequest")),
			},
			Responses: updateResponses,
		},
	})

	doc.Paths.Set(apiPrefix+"/admins/{adminId}/history", &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam},
		Get: &openapi3.Operation{
			Tags:        []string{"admins"},
			Summary:     "Administrator audit history",
			Description: "Audit entries for one administrator, newest first.",
			OperationID: "getAdminHistory",
			Parameters: openapi3.Parameters{
				&openapi3.ParameterRef{
					Value: openapi3.NewQueryParameter("limit").
						WithDescription("Maximum number of entries to return (default 50).").
						WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
				},
			},
			Responses: newResponses("200", "Audit entries", ref("AuditEntryList"), "400", "401", "404", "500"),
		},
	})
}

// listQueryParameters returns the query parameters of the admin list.
func listQueryParameters() openapi3.Parameters {
	roles := make([]interface{}, 0, len(model.Roles()))
	for _, r := range model.Roles() {
		roles = append(roles, string(r))
	}
	return openapi3.Parameters{
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("limit").
				WithDescription("Maximum number of records to return (1-1000, default 100).").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("offset").
				WithDescription("Number of records to skip before returning results.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("role").
				WithDescription("Only return administrators with this role.").
				WithSchema(openapi3.NewStringSchema().WithEnum(roles...)),
		},
	}
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// newResponses builds a Responses map with a success response and the listed
// error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef, errorCodes ...string) *openapi3.Responses {
	successDesc := description
	responses := openapi3.NewResponses(openapi3.WithName(statusCode, &openapi3.Response{
		Description: &successDesc,
		Content:     openapi3.NewContentWithJSONSchemaRef(schema),
	}))

	for _, code := range errorCodes {
		responses.Set(code, errorResponse(errorDescriptions[code]))
	}
	return responses
}

var errorDescriptions = map[string]string{
	"400": "Bad request",
	"401": "Unauthorized",
	"403": "Forbidden",
	"404": "Not found",
	"409": "Conflict",
	"429": "Too many requests",
	"500": "Internal server error",
}

func errorResponse(description string) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &description,
			Content:     openapi3.NewContentWithJSONSchemaRef(ref("ErrorResponse")),
		},
	}
}

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

// ─── Component Schemas ──────────────────────────────────────────────────────

func addComponentSchemas(doc *openapi3.T) {
	s := doc.Components.Schemas

	s["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
							"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
						},
					},
				},
			},
		},
	}

	roles := make([]interface{}, 0, len(model.Roles()))
	for _, r := range model.Roles() {
		roles = append(roles, string(r))
	}
	perms := make([]interface{}, 0, catalog.MaxPermissionCount())
	for _, p := range catalog.AllPermissions() {
		perms = append(perms, p)
	}
	permissionList := openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema().WithEnum(perms...))

	s["Admin"] = openapi3.NewSchemaRef("", &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			"id":             openapi3.NewInt64Schema().NewRef(),
			"email":          openapi3.NewStringSchema().WithFormat("email").NewRef(),
			"name":           openapi3.NewStringSchema().NewRef(),
			"role":           openapi3.NewStringSchema().WithEnum(roles...).NewRef(),
			"role_label":     openapi3.NewStringSchema().NewRef(),
			"permissions":    permissionList.NewRef(),
			"access_level":   openapi3.NewInt32Schema().WithMin(0).WithMax(100).NewRef(),
			"version":        versionSchema(),
			"is_active":      openapi3.NewBoolSchema().NewRef(),
			"is_super_admin": openapi3.NewBoolSchema().NewRef(),
			"created_at":     openapi3.NewDateTimeSchema().NewRef(),
			"updated_at":     openapi3.NewDateTimeSchema().NewRef(),
			"last_login_at":  openapi3.NewDateTimeSchema().NewRef(),
		},
	})

	s["AdminList"] = listSchema(ref("Admin"))

	s["UpdateAdminRequest"] = openapi3.NewSchemaRef("", &openapi3.Schema{
		Type:        &openapi3.Types{"object"},
		Description: "Omitted fields are left unchanged. Unknown permission tokens are dropped.",
		Required:    []string{"client_version"},
		Properties: openapi3.Schemas{
			"name":           openapi3.NewStringSchema().NewRef(),
			"email":          openapi3.NewStringSchema().WithFormat("email").NewRef(),
			"role":           openapi3.NewStringSchema().WithEnum(roles...).NewRef(),
			"permissions":    openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()).NewRef(),
			"client_version": openapi3.NewInt64Schema().WithMin(0).NewRef(),
		},
	})

	s["AuditEntry"] = openapi3.NewSchemaRef("", &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			"id":         openapi3.NewInt64Schema().NewRef(),
			"target_id":  openapi3.NewInt64Schema().NewRef(),
			"actor_id":   openapi3.NewInt64Schema().NewRef(),
			"action":     openapi3.NewStringSchema().WithEnum(model.ActionRoleChange, model.ActionPermissionsUpdate, model.ActionProfileUpdate).NewRef(),
			"details":    openapi3.NewStringSchema().NewRef(),
			"created_at": openapi3.NewDateTimeSchema().NewRef(),
		},
	})

	s["AuditEntryList"] = listSchema(ref("AuditEntry"))

	s["RoleOptions"] = openapi3.NewSchemaRef("", &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			"roles": openapi3.NewArraySchema().WithItems(&openapi3.Schema{
				Type: &openapi3.Types{"object"},
				Properties: openapi3.Schemas{
					"value":               openapi3.NewStringSchema().WithEnum(roles...).NewRef(),
					"label":               openapi3.NewStringSchema().NewRef(),
					"default_permissions": permissionList.NewRef(),
					"access_level":        openapi3.NewInt32Schema().NewRef(),
				},
			}).NewRef(),
			"permissions": openapi3.NewArraySchema().WithItems(&openapi3.Schema{
				Type: &openapi3.Types{"object"},
				Properties: openapi3.Schemas{
					"key":    openapi3.NewStringSchema().NewRef(),
					"label":  openapi3.NewStringSchema().NewRef(),
					"module": openapi3.NewStringSchema().NewRef(),
				},
			}).NewRef(),
		},
	})

	s["LoginRequest"] = openapi3.NewSchemaRef("", &openapi3.Schema{
		Type:     &openapi3.Types{"object"},
		Required: []string{"email", "password"},
		Properties: openapi3.Schemas{
			"email":    openapi3.NewStringSchema().WithFormat("email").NewRef(),
			"password": openapi3.NewStringSchema().WithFormat("password").NewRef(),
		},
	})

	s["LoginResponse"] = openapi3.NewSchemaRef("", &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			"session_token":  openapi3.NewStringSchema().NewRef(),
			"token_type":     openapi3.NewStringSchema().NewRef(),
			"expires_in":     openapi3.NewInt32Schema().NewRef(),
			"admin_id":       openapi3.NewInt64Schema().NewRef(),
			"email":          openapi3.NewStringSchema().NewRef(),
			"name":           openapi3.NewStringSchema().NewRef(),
			"role":           openapi3.NewStringSchema().WithEnum(roles...).NewRef(),
			"is_super_admin": openapi3.NewBoolSchema().NewRef(),
		},
	})
}

func versionSchema() *openapi3.SchemaRef {
	v := openapi3.NewInt64Schema()
	v.Description = "Send back as client_version when editing."
	return v.NewRef()
}

func listSchema(item *openapi3.SchemaRef) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("", &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			"resource": &openapi3.SchemaRef{Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: item,
			}},
			"meta": metaSchema(),
		},
	})
}

// metaSchema returns the schema for the "meta" field in list responses.
func metaSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"count": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"integer"},
						Format:      "int32",
						Description: "Number of records in this page.",
					},
				},
				"total": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"integer"},
						Format:      "int64",
						Description: "Total number of records matching the query.",
					},
				},
				"limit": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"integer"},
						Format:      "int32",
						Description: "Maximum records returned per page.",
					},
				},
				"offset": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"integer"},
						Format:      "int32",
						Description: "Number of records skipped.",
					},
				},
			},
		},
	}
}
