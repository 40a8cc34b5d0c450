// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/server/main.go
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
		"/register": {
			"post": {
				"tags": [
					"Users"
				],
				"summary": "Register a new user",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.RegisterRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/handler.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/handler.AuthResponse"
										}
									}
								}
							]
						}
					},
					"400": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/handler.Response"
						}
					},
					"409": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/handler.Response"
						}
					}
				},
				"consumes": [
					"application/json"
				]
			}
		},
		"/login": {
			"post": {
				"tags": [
					"Users"
				],
				"summary": "Log in and receive a bearer token",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.LoginRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/handler.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/handler.AuthResponse"
										}
									}
								}
							]
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/handler.Response"
						}
					}
				},
				"consumes": [
					"application/json"
				]
			}
		},
		"/me": {
			"get": {
				"tags": [
					"Users"
				],
				"summary": "Current user",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/handler.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/handler.UserResponse"
										}
									}
								}
							]
						}
					},
					"401": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/handler.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/tasks": {
			"get": {
				"tags": [
					"Tasks"
				],
				"summary": "List the task tree",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "boolean",
						"description": "Hide completed tasks",
						"name": "hide_completed",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/handler.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "array",
											"items": {
												"$ref": "#/definitions/handler.TaskNodeResponse"
											}
										}
									}
								}
							]
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			},
			"post": {
				"tags": [
					"Tasks"
				],
				"summary": "Create a task",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.CreateTaskRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/handler.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/handler.TaskResponse"
										}
									}
								}
							]
						}
					},
					"400": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/handler.Response"
						}
					},
					"404": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/handler.Response"
						}
					},
					"409": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/handler.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				]
			}
		},
		"/tasks/{id}": {
			"get": {
				"tags": [
					"Tasks"
				],
				"summary": "Get a task with its direct subtasks",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Task ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/handler.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/handler.TaskDetailResponse"
										}
									}
								}
							]
						}
					},
					"404": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/handler.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			},
			"put": {
				"tags": [
					"Tasks"
				],
				"summary": "Update a task",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.UpdateTaskRequest"
						}
					},
					{
						"type": "string",
						"description": "Task ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/handler.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/handler.TaskResponse"
										}
									}
								}
							]
						}
					},
					"400": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/handler.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				]
			},
			"delete": {
				"tags": [
					"Tasks"
				],
				"summary": "Delete a task and all of its subtasks",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Task ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/handler.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/handler.DeleteResponse"
										}
									}
								}
							]
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/tasks/{id}/toggle": {
			"post": {
				"tags": [
					"Tasks"
				],
				"summary": "Toggle completion of one task",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Task ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/handler.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/handler.TaskResponse"
										}
									}
								}
							]
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/tasks/{id}/subtasks": {
			"post": {
				"tags": [
					"Tasks"
				],
				"summary": "Create a subtask",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.CreateTaskRequest"
						}
					},
					{
						"type": "string",
						"description": "Task ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"201": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/handler.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/handler.TaskResponse"
										}
									}
								}
							]
						}
					},
					"409": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/handler.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				]
			}
		},
		"/tasks/{id}/suggestions": {
			"post": {
				"tags": [
					"Tasks"
				],
				"summary": "Generate subtask suggestions",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Task ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/handler.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/handler.SuggestionResponse"
										}
									}
								}
							]
						}
					},
					"429": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/handler.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/tasks/{id}/suggestions/accept": {
			"post": {
				"tags": [
					"Tasks"
				],
				"summary": "Add a suggested subtask",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.AcceptSuggestionRequest"
						}
					},
					{
						"type": "string",
						"description": "Task ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"201": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/handler.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/handler.TaskResponse"
										}
									}
								}
							]
						}
					},
					"409": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/handler.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				]
			}
		}
	},
	"definitions": {
		"handler.Response": {
			"type": "object",
			"properties": {
				"status": {
					"type": "string"
				},
				"data": {},
				"error": {
					"type": "string"
				}
			}
		},
		"handler.RegisterRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			},
			"required": [
				"email",
				"name",
				"password"
			]
		},
		"handler.LoginRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			},
			"required": [
				"email",
				"password"
			]
		},
		"handler.UserResponse": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"name": {
					"type": "string"
				}
			}
		},
		"handler.AuthResponse": {
			"type": "object",
			"properties": {
				"token": {
					"type": "string"
				},
				"user": {
					"$ref": "#/definitions/handler.UserResponse"
				}
			}
		},
		"handler.CreateTaskRequest": {
			"type": "object",
			"properties": {
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"due_date": {
					"type": "string"
				},
				"priority": {
					"type": "string"
				},
				"parent_id": {
					"type": "string"
				}
			},
			"required": [
				"title"
			]
		},
		"handler.UpdateTaskRequest": {
			"type": "object",
			"properties": {
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"due_date": {
					"type": "string"
				},
				"clear_due_date": {
					"type": "boolean"
				},
				"priority": {
					"type": "string"
				},
				"completed": {
					"type": "boolean"
				}
			}
		},
		"handler.AcceptSuggestionRequest": {
			"type": "object",
			"properties": {
				"title": {
					"type": "string"
				}
			},
			"required": [
				"title"
			]
		},
		"handler.TaskResponse": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"parent_id": {
					"type": "string"
				},
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"completed": {
					"type": "boolean"
				},
				"priority": {
					"type": "string"
				},
				"priority_level": {
					"type": "integer"
				},
				"due_date": {
					"type": "string"
				},
				"generation_count": {
					"type": "integer"
				},
				"created_at": {
					"type": "string"
				},
				"updated_at": {
					"type": "string"
				}
			}
		},
		"handler.TaskNodeResponse": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"parent_id": {
					"type": "string"
				},
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"completed": {
					"type": "boolean"
				},
				"priority": {
					"type": "string"
				},
				"priority_level": {
					"type": "integer"
				},
				"due_date": {
					"type": "string"
				},
				"generation_count": {
					"type": "integer"
				},
				"created_at": {
					"type": "string"
				},
				"updated_at": {
					"type": "string"
				},
				"depth": {
					"type": "integer"
				},
				"children": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/handler.TaskNodeResponse"
					}
				}
			}
		},
		"handler.TaskDetailResponse": {
			"type": "object",
			"properties": {
				"task": {
					"$ref": "#/definitions/handler.TaskResponse"
				},
				"depth": {
					"type": "integer"
				},
				"children": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/handler.TaskResponse"
					}
				},
				"generations_left": {
					"type": "integer"
				},
				"slots_left": {
					"type": "integer"
				}
			}
		},
		"handler.DeleteResponse": {
			"type": "object",
			"properties": {
				"deleted_ids": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"parent_id": {
					"type": "string"
				}
			}
		},
		"handler.SuggestionResponse": {
			"type": "object",
			"properties": {
				"task_id": {
					"type": "string"
				},
				"candidates": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"rejection": {
					"type": "string"
				},
				"manual_entry": {
					"type": "boolean"
				},
				"message": {
					"type": "string"
				},
				"generations_left": {
					"type": "integer"
				},
				"slots_left": {
					"type": "integer"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"description": "Type \"Bearer\" followed by a space and JWT token.",
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Todo Tree API",
	Description:      "API for managing nested to-do lists with generated subtask suggestions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
