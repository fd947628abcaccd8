// Package swagger holds the OpenAPI document of the admin API, registered with swag so
// gin-swagger can serve it.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Assignments", "description": "Assignment trees and groups"},
        {"name": "Distribution", "description": "Which TA grades which group"},
        {"name": "Blacklist", "description": "Students a TA must not grade"},
        {"name": "Grades", "description": "Grade sheets and exports"},
        {"name": "Auth", "description": "TA access tokens"},
        {"name": "Cache", "description": "Snapshot maintenance"},
        {"name": "Metrics", "description": "Service statistics"}
    ],
    "paths": {
        "/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Claims of the calling TA",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/assignments": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List assignments with their gradable events and parts",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/assignments/{id}": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Get one assignment",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/assignments/{id}/groups": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List the groups of an assignment",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/parts/{id}/distribution": {
            "get": {
                "tags": ["Distribution"],
                "summary": "Show which TA grades which group for a part",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/parts/{id}/groups/{groupId}/grader": {
            "put": {
                "tags": ["Distribution"],
                "summary": "Assign a group's part to a TA",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "groupId", "in": "path", "required": true, "type": "integer", "description": "0 addresses a singleton group by student"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignGraderRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Envelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/parts/{id}/grades": {
            "get": {
                "tags": ["Grades"],
                "summary": "Grade sheet of a part",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/parts/{id}/grades/export": {
            "get": {
                "tags": ["Grades"],
                "summary": "Export the grade sheet of a part",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Grades"],
                "summary": "Download an export through its signed link",
                "security": [],
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "File"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/tas/{login}/blacklist": {
            "get": {
                "tags": ["Blacklist"],
                "summary": "List the students a TA must not grade",
                "parameters": [{"name": "login", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            },
            "post": {
                "tags": ["Blacklist"],
                "summary": "Blacklist students for a TA",
                "parameters": [
                    {"name": "login", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BlacklistRequest"}}
                ],
                "responses": {"204": {"description": "No Content"}}
            },
            "delete": {
                "tags": ["Blacklist"],
                "summary": "Remove students from a TA's blacklist",
                "parameters": [
                    {"name": "login", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BlacklistRequest"}}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/tas/{login}/token": {
            "post": {
                "tags": ["Auth"],
                "summary": "Issue an access token for a TA",
                "parameters": [{"name": "login", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/cache/refresh": {
            "post": {
                "tags": ["Cache"],
                "summary": "Reload the snapshot from the database",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Aggregated request, cache and store statistics",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        }
    },
    "definitions": {
        "AssignGraderRequest": {
            "type": "object",
            "properties": {
                "ta": {"type": "string", "description": "TA login, empty to unassign"},
                "student": {"type": "string", "description": "student login when groupId is 0"}
            }
        },
        "BlacklistRequest": {
            "type": "object",
            "required": ["students"],
            "properties": {
                "students": {"type": "array", "items": {"type": "string"}}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "op": {"type": "string"},
                "entity": {"type": "string"}
            }
        },
        "Envelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

// SwaggerInfo holds the values rendered into the document. BasePath follows the
// configured API prefix.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Gradestore admin API",
	Description:      "Read and maintain assignments, grader distribution, blacklists and grades.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
