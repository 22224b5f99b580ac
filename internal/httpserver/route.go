package httpserver

import (
	"github.com/labstack/echo/v4"

	authmw "github.com/Skotchmaster/storefront/internal/middleware/auth"
)

type Deps struct {
	AuthHandler    *AuthHTTP
	CatalogHandler *CatalogHTTP
	HealthHandler  *HealthHTTP
	JWTSecret      []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", d.HealthHandler.Live)
	e.GET("/health/ready", d.HealthHandler.Ready)
	e.GET("/health/cache", d.HealthHandler.CacheStats)

	requireAuth := authmw.RequireBearer(d.JWTSecret)

	auth := e.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.GET("/profile", d.AuthHandler.Profile, requireAuth)

	products := e.Group("/products")
	products.GET("", d.CatalogHandler.GetProducts)
	products.GET("/search", d.CatalogHandler.SearchProducts)
	products.GET("/:id", d.CatalogHandler.GetProduct)
	products.POST("", d.CatalogHandler.CreateProduct, requireAuth)
	products.POST("/import", d.CatalogHandler.ImportProducts, requireAuth)
	products.PUT("/:id", d.CatalogHandler.UpdateProduct, requireAuth)
	products.DELETE("/:id", d.CatalogHandler.DeleteProduct, requireAuth)
}
