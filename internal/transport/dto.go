package transport

import (
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
)

type RegisterRequest struct {
	Username  string `json:"username"  validate:"required,min=3,max=100"`
	Email     string `json:"email"     validate:"required,email,max=255"`
	Password  string `json:"password"  validate:"required,min=6,max=72"`
	FirstName string `json:"firstName" validate:"omitempty,max=100"`
	LastName  string `json:"lastName"  validate:"omitempty,max=100"`
}

type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" validate:"required"`
	Password        string `json:"password"        validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
}

type AuthResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	User         UserResponse `json:"user"`
}

func UserFromModel(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt,
	}
}

type CreateProductRequest struct {
	Name        string  `json:"name"        validate:"required,min=1,max=100"`
	Description string  `json:"description" validate:"max=500"`
	Price       float64 `json:"price"       validate:"gte=0.01"`
	Stock       int     `json:"stock"       validate:"gte=0"`
	Category    string  `json:"category"    validate:"max=50"`
}

func (r CreateProductRequest) ToModel() models.Product {
	return models.Product{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		Category:    r.Category,
	}
}

// UpdateProductRequest is a sparse update: nil fields keep their stored value,
// and an empty name is ignored.
type UpdateProductRequest struct {
	Name        *string  `json:"name"        validate:"omitempty,max=100"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	Price       *float64 `json:"price"       validate:"omitempty,gte=0.01"`
	Stock       *int     `json:"stock"       validate:"omitempty,gte=0"`
	Category    *string  `json:"category"    validate:"omitempty,max=50"`
}

// Apply merges the provided fields into p and reports whether anything changed.
func (r UpdateProductRequest) Apply(p *models.Product) bool {
	changed := false
	if r.Name != nil && *r.Name != "" {
		p.Name = *r.Name
		changed = true
	}
	if r.Description != nil {
		p.Description = *r.Description
		changed = true
	}
	if r.Price != nil {
		p.Price = *r.Price
		changed = true
	}
	if r.Stock != nil {
		p.Stock = *r.Stock
		changed = true
	}
	if r.Category != nil {
		p.Category = *r.Category
		changed = true
	}
	return changed
}

type ImportProductsRequest struct {
	Products []CreateProductRequest `json:"products" validate:"required,min=1,max=500,dive"`
}

type ProductResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func ProductFromModel(p *models.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Category:    p.Category,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func ProductsFromModels(ps []models.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(ps))
	for i := range ps {
		out = append(out, ProductFromModel(&ps[i]))
	}
	return out
}

type SearchResponse struct {
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Size     int               `json:"size"`
	Products []ProductResponse `json:"products"`
}
