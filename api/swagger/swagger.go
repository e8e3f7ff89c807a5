package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CDI Lab API",
        "description": "Research data management for CDI checklist snapshots",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Snapshots", "description": "Checklist snapshot ingest, search and lifecycle"},
        {"name": "Children", "description": "Participant metadata"},
        {"name": "Exports", "description": "Asynchronous report generation"},
        {"name": "Formats", "description": "Checklist, presentation and percentile definitions"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/snapshots/upload": {
            "post": {
                "tags": ["Snapshots"],
                "summary": "Ingest a CSV of checklist snapshots",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Upload rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/snapshots/upload/validate": {
            "post": {
                "tags": ["Snapshots"],
                "summary": "Dry-run parse of a CSV upload",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/snapshots/search": {
            "post": {
                "tags": ["Snapshots"],
                "summary": "Search snapshots by filter list",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SearchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/snapshots/delete/confirm": {
            "post": {
                "tags": ["Snapshots"],
                "summary": "Arm a delete confirmation for the caller",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/snapshots/delete": {
            "post": {
                "tags": ["Snapshots"],
                "summary": "Delete snapshots matching filters",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DeleteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "428": {"description": "Confirmation required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/snapshots/restore": {
            "post": {
                "tags": ["Snapshots"],
                "summary": "Restore soft-deleted snapshots matching filters",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RestoreRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/children/{childId}": {
            "put": {
                "tags": ["Children"],
                "summary": "Update participant metadata and recompute derived fields",
                "parameters": [
                    {"name": "childId", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChildPatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a new export job",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export job status",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export via signed token",
                "parameters": [
                    {"name": "token", "in": "path", "type": "string", "required": true}
                ],
                "produces": ["application/octet-stream"],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        },
        "/formats/cdi": {
            "get": {
                "tags": ["Formats"],
                "summary": "List checklist formats",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/formats/cdi/{name}": {
            "get": {
                "tags": ["Formats"],
                "summary": "Fetch one checklist format",
                "parameters": [
                    {"name": "name", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Formats"],
                "summary": "Create or replace a checklist format",
                "parameters": [
                    {"name": "name", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveFormatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Formats"],
                "summary": "Delete a checklist format",
                "parameters": [
                    {"name": "name", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/formats/presentation/{name}": {
            "put": {
                "tags": ["Formats"],
                "summary": "Create or replace a presentation format",
                "parameters": [
                    {"name": "name", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SavePresentationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/formats/percentile/{name}": {
            "put": {
                "tags": ["Formats"],
                "summary": "Create or replace a percentile table from raw CSV",
                "parameters": [
                    {"name": "name", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SavePercentileTableRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Filter": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "operator": {"type": "string", "enum": ["eq", "lt", "gt", "neq", "lte", "gte"]},
                "operand": {"type": "string"}
            },
            "required": ["field", "operator", "operand"]
        },
        "SearchRequest": {
            "type": "object",
            "properties": {
                "filters": {"type": "array", "items": {"$ref": "#/definitions/Filter"}},
                "include_deleted": {"type": "boolean"}
            },
            "required": ["filters"]
        },
        "DeleteRequest": {
            "type": "object",
            "properties": {
                "filters": {"type": "array", "items": {"$ref": "#/definitions/Filter"}},
                "hard": {"type": "boolean"}
            },
            "required": ["filters"]
        },
        "RestoreRequest": {
            "type": "object",
            "properties": {
                "filters": {"type": "array", "items": {"$ref": "#/definitions/Filter"}}
            },
            "required": ["filters"]
        },
        "ChildPatchRequest": {
            "type": "object",
            "properties": {
                "gender": {"type": "integer"},
                "birthday": {"type": "string"},
                "hard_of_hearing": {"type": "integer"},
                "languages": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["consolidated", "archive", "summary"]},
                "format": {"type": "string", "enum": ["csv", "zip", "pdf"]},
                "filters": {"type": "array", "items": {"$ref": "#/definitions/Filter"}},
                "presentation_format": {"type": "string"},
                "include_deleted": {"type": "boolean"},
                "title": {"type": "string"}
            },
            "required": ["type", "format", "filters"]
        },
        "SaveFormatRequest": {
            "type": "object",
            "properties": {
                "human_name": {"type": "string"},
                "filename": {"type": "string"},
                "details": {"type": "object"}
            },
            "required": ["human_name", "filename", "details"]
        },
        "SavePresentationRequest": {
            "type": "object",
            "properties": {
                "human_name": {"type": "string"},
                "filename": {"type": "string"},
                "details": {"type": "object"}
            },
            "required": ["human_name", "filename", "details"]
        },
        "SavePercentileTableRequest": {
            "type": "object",
            "properties": {
                "human_name": {"type": "string"},
                "filename": {"type": "string"},
                "body": {"type": "string"}
            },
            "required": ["human_name", "filename", "body"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
