package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the site service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>sitesync API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document for the admin, public and ops endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "sitesync", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer" } },
    "schemas": {
      "SaveResult": { "type": "object", "properties": { "success": {"type":"boolean"}, "source": {"type":"string","enum":["remote","local"]}, "conflict": {"type":"boolean"}, "warning": {"type":"string"} } },
      "Error": { "type": "object", "properties": { "error": {"type":"string"}, "fields": {"type":"object","additionalProperties":{"type":"string"}} } }
    }
  },
  "paths": {
    "/admin/login": {
      "post": {
        "summary": "Log in with the admin credential table",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "token, username and expiry (epoch ms)" }, "401": { "description": "wrong credentials" }, "429": { "description": "too many attempts" } }
      }
    },
    "/admin/logout": { "post": { "summary": "End the current session", "responses": { "200": { "description": "logged out" } } } },
    "/admin/session": { "get": { "summary": "Current admin", "security": [{"bearer":[]}], "responses": { "200": { "description": "username" }, "401": { "description": "not logged in" } } } },
    "/admin/api/content": { "get": { "summary": "Whole content document", "security": [{"bearer":[]}], "responses": { "200": { "description": "document" } } } },
    "/admin/api/stats": { "get": { "summary": "Dashboard counters", "security": [{"bearer":[]}], "responses": { "200": { "description": "counts" } } } },
    "/admin/api/status": { "get": { "summary": "Remote sync status", "security": [{"bearer":[]}], "responses": { "200": { "description": "online, version, last sync" } } } },
    "/admin/api/{collection}": {
      "post": {
        "summary": "Create a campaign, news item, staff member or service",
        "security": [{"bearer":[]}],
        "parameters": [{ "name": "collection", "in": "path", "required": true, "schema": {"type":"string","enum":["campaigns","news","staff","services"]} }],
        "responses": { "201": { "description": "created item and save result" }, "422": { "description": "invalid fields" } }
      }
    },
    "/admin/api/{collection}/{id}": {
      "patch": { "summary": "Merge fields into an item", "security": [{"bearer":[]}], "responses": { "200": { "description": "updated item" }, "404": { "description": "unknown id" }, "422": { "description": "invalid fields" } } },
      "delete": { "summary": "Delete a news item", "security": [{"bearer":[]}], "responses": { "200": { "description": "deleted" }, "405": { "description": "collection does not allow deletion" } } }
    },
    "/admin/api/campaigns/{id}/toggle": { "post": { "summary": "Flip a campaign's active flag", "security": [{"bearer":[]}], "responses": { "200": { "description": "campaign" }, "404": { "description": "unknown id" } } } },
    "/admin/api/campaigns/active": { "post": { "summary": "Activate or deactivate all campaigns", "security": [{"bearer":[]}], "responses": { "200": { "description": "number of campaigns" } } } },
    "/admin/api/staff/{id}/reviews": { "post": { "summary": "Append a review", "security": [{"bearer":[]}], "responses": { "201": { "description": "staff member" } } } },
    "/admin/api/settings": { "put": { "summary": "Update site settings", "security": [{"bearer":[]}], "responses": { "200": { "description": "settings" } } } },
    "/admin/api/export": { "get": { "summary": "Download the document as JSON", "security": [{"bearer":[]}], "responses": { "200": { "description": "attachment; X-Archive-URL when archived" } } } },
    "/admin/api/import": { "post": { "summary": "Replace the document from JSON, an uploaded file or ?archiveKey=", "security": [{"bearer":[]}], "responses": { "200": { "description": "imported" }, "422": { "description": "invalid document, nothing changed" } } } },
    "/admin/api/reset": { "post": { "summary": "Restore bundled defaults", "security": [{"bearer":[]}], "responses": { "200": { "description": "reset" } } } },
    "/api/pages/{page}": { "get": { "summary": "View-model of a public page", "responses": { "200": { "description": "view-model" }, "404": { "description": "unknown page" } } } },
    "/ws/pages/{page}": { "get": { "summary": "Live view-model stream (websocket)", "responses": { "101": { "description": "switching protocols" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition" } } } }
  }
}`
