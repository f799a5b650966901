// Package docs is generated by swaggo/swag from the handler annotations.
// Regenerate with: swag init -g internal/http/router.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/admin/reviews/takedown-requests": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Takedowns"],
                "summary": "List takedown requests",
                "parameters": [
                    {"type": "string", "description": "Admin ID (demo header)", "name": "X-User-ID", "in": "header"},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 25, "description": "Items per page", "name": "page_size", "in": "query"},
                    {"type": "string", "default": "open", "description": "open, accepted, rejected or all", "name": "status", "in": "query"},
                    {"type": "string", "description": "Reason code filter", "name": "reason_code", "in": "query"},
                    {"type": "string", "description": "Vendor filter", "name": "vendor_id", "in": "query"},
                    {"type": "string", "description": "Created at or after (RFC3339 or YYYY-MM-DD)", "name": "from_date", "in": "query"},
                    {"type": "string", "description": "Created at or before (RFC3339 or YYYY-MM-DD)", "name": "to_date", "in": "query"},
                    {"type": "string", "default": "created_at", "description": "created_at or priority", "name": "sort_by", "in": "query"},
                    {"type": "string", "default": "desc", "description": "asc or desc", "name": "sort_order", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorEnvelope"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorEnvelope"}}
                }
            }
        },
        "/admin/reviews/takedown-requests/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Takedowns"],
                "summary": "Get takedown request detail",
                "parameters": [
                    {"type": "string", "description": "Admin ID (demo header)", "name": "X-User-ID", "in": "header"},
                    {"type": "string", "description": "Takedown request ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorEnvelope"}}
                }
            }
        },
        "/admin/reviews/takedown-requests/{id}/resolve": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Takedowns"],
                "summary": "Resolve a takedown request",
                "parameters": [
                    {"type": "string", "description": "Admin ID (demo header)", "name": "X-User-ID", "in": "header"},
                    {"type": "string", "description": "Idempotency key for safe retries", "name": "Idempotency-Key", "in": "header", "required": true},
                    {"type": "string", "description": "Takedown request ID", "name": "id", "in": "path", "required": true},
                    {"description": "Resolution", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ResolveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.ErrorEnvelope"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handlers.ErrorEnvelope"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorEnvelope"}}
                }
            }
        },
        "/vendor/reviews/{id}/takedown-requests": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Takedowns"],
                "summary": "Request a review takedown",
                "parameters": [
                    {"type": "string", "description": "Vendor ID (demo header)", "name": "X-User-ID", "in": "header"},
                    {"type": "string", "description": "Review ID", "name": "id", "in": "path", "required": true},
                    {"description": "Takedown request", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SubmitRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.ErrorEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Evidence": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "url": {"type": "string"},
                "filename": {"type": "string"},
                "size_bytes": {"type": "integer"},
                "description": {"type": "string"},
                "content": {"type": "string"},
                "uploaded_at": {"type": "string", "format": "date-time"}
            }
        },
        "handlers.Envelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {}
            }
        },
        "handlers.ErrorEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"$ref": "#/definitions/handlers.ErrorResponse"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "object", "additionalProperties": true}
            }
        },
        "handlers.ListResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {"type": "array", "items": {"type": "object"}},
                "meta": {"$ref": "#/definitions/handlers.PaginationMeta"}
            }
        },
        "handlers.PaginationMeta": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_items": {"type": "integer"},
                "total_pages": {"type": "integer"},
                "has_next": {"type": "boolean"},
                "has_prev": {"type": "boolean"},
                "summary": {"type": "object"}
            }
        },
        "handlers.ResolveRequest": {
            "type": "object",
            "required": ["decision", "reason"],
            "properties": {
                "decision": {"type": "string", "enum": ["accept", "reject"]},
                "action": {"type": "string", "enum": ["hide", "remove"]},
                "reason": {"type": "string", "minLength": 50, "maxLength": 2000},
                "admin_notes": {"type": "string", "maxLength": 5000},
                "notify_vendor": {"type": "boolean", "default": true},
                "notify_reviewer": {"type": "boolean", "default": false}
            }
        },
        "handlers.SubmitRequest": {
            "type": "object",
            "required": ["reason_code", "reason_description"],
            "properties": {
                "reason_code": {"type": "string"},
                "reason_description": {"type": "string"},
                "vendor_notes": {"type": "string"},
                "evidence": {"type": "array", "items": {"$ref": "#/definitions/domain.Evidence"}},
                "priority": {"type": "string", "enum": ["high", "medium", "low"]}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Review Takedown API",
	Description:      "Admin resolution workflow for vendor review-takedown requests.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
