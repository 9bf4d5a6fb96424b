package controller

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
)

//go:embed openapi/openapi.yaml
var openapiDocument []byte

// GetSwagger parses and validates the embedded OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiDocument)
	if err != nil {
		return nil, fmt.Errorf("error loading openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}

// RegisterHandlers mounts the public and protected user routes on g.
// protected is applied to every route that needs an authorized principal.
func RegisterHandlers(g *echo.Group, c *Controller, protected echo.MiddlewareFunc) {
	g.POST("/register", c.Register)
	g.POST("/login", c.Login)
	g.POST("/refresh", c.Refresh)

	g.POST("/logout", c.Logout, protected)
	g.GET("/current-user", c.CurrentUser, protected)
	g.POST("/change-password", c.ChangePassword, protected)
	g.PATCH("/update-account-details", c.UpdateAccountDetails, protected)
}
