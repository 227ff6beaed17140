package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
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
    <title>recipe-api Swagger</title>
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

// Minimal OpenAPI document describing the recipe API surface.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "recipe-api", "version": "v0.1.0" },
  "paths": {
    "/recipes": {
      "get": { "summary": "List recipes (own when authenticated, public otherwise)", "parameters": [{"name":"cursor","in":"query","schema":{"type":"string"}}], "responses": { "200": { "description": "one page of recipes" } } },
      "post": { "summary": "Create a recipe", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"name":{"type":"string"},"description":{"type":"string"},"instructions":{"type":"string"},"public":{"type":"boolean"}}}}}}, "responses": { "201": { "description": "created" }, "400": { "description": "missing fields" } } }
    },
    "/recipes/{id}": {
      "get": { "summary": "Fetch one recipe", "responses": { "200": { "description": "the recipe" }, "403": { "description": "owned by someone else" }, "404": { "description": "unknown id" } } },
      "put": { "summary": "Replace a recipe", "responses": { "200": { "description": "updated" } } },
      "patch": { "summary": "Partially update a recipe", "responses": { "200": { "description": "updated" } } },
      "delete": { "summary": "Delete a recipe and detach it from every ingredient", "responses": { "204": { "description": "deleted" } } }
    },
    "/recipes/{id}/ingredients/{ingredientID}": {
      "post": { "summary": "Link an ingredient with a quantity", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"quantity":{"type":"string"}}}}}}, "responses": { "201": { "description": "linked" }, "403": { "description": "already linked" } } },
      "put": { "summary": "Update the quantity of an existing link", "responses": { "200": { "description": "updated" }, "404": { "description": "not linked" } } },
      "delete": { "summary": "Remove the link", "responses": { "204": { "description": "unlinked" } } }
    },
    "/recipes/{id}/photo": {
      "put": { "summary": "Upload or replace the recipe photo", "responses": { "201": { "description": "stored" } } },
      "get": { "summary": "Download the recipe photo", "responses": { "200": { "description": "photo bytes" }, "404": { "description": "no photo" } } }
    },
    "/ingredients": {
      "get": { "summary": "List own ingredients", "parameters": [{"name":"cursor","in":"query","schema":{"type":"string"}}], "responses": { "200": { "description": "one page of ingredients" } } },
      "post": { "summary": "Create an ingredient", "responses": { "201": { "description": "created" } } }
    },
    "/ingredients/{id}": {
      "get": { "summary": "Fetch one ingredient", "responses": { "200": { "description": "the ingredient" } } },
      "put": { "summary": "Replace an ingredient", "responses": { "200": { "description": "updated" } } },
      "patch": { "summary": "Partially update an ingredient", "responses": { "200": { "description": "updated" } } },
      "delete": { "summary": "Delete an ingredient and detach it from every recipe", "responses": { "204": { "description": "deleted" } } }
    },
    "/users": { "get": { "summary": "List cached user profiles", "responses": { "200": { "description": "profiles" } } } },
    "/users/{id}": { "delete": { "summary": "Delete own account and everything it owns", "responses": { "204": { "description": "deleted" } } } },
    "/userinfo": { "get": { "summary": "Current caller's profile", "responses": { "200": { "description": "profile" } } } },
    "/login": { "get": { "summary": "Start the Google OAuth2 flow", "responses": { "302": { "description": "redirect to Google" } } } },
    "/oauth2callback": { "get": { "summary": "OAuth2 redirect target", "responses": { "200": { "description": "tokens returned" } } } },
    "/auth/refresh": {
      "post": { "summary": "Refresh access token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "new access token" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Logout and invalidate refresh token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged out" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
