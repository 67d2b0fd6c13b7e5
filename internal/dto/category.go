package dto

import "github.com/SscSPs/money_sync_app/internal/core/domain"

// CreateCategoryRequest defines the data needed to create a category.
type CreateCategoryRequest struct {
	Name         string              `json:"name" binding:"required,max=60"`
	CategoryType domain.CategoryType `json:"type" binding:"required,oneof=income expense"`
	Color        string              `json:"color" binding:"omitempty,hexcolor"`
}

// UpdateCategoryRequest changes presentation fields. The type is immutable.
type UpdateCategoryRequest struct {
	Name  *string `json:"name" binding:"omitempty,max=60"`
	Color *string `json:"color" binding:"omitempty,hexcolor"`
}

// CategoryResponse defines the data returned for a category.
type CategoryResponse struct {
	CategoryID   string              `json:"id"`
	Name         string              `json:"name"`
	CategoryType domain.CategoryType `json:"type"`
	Color        string              `json:"color"`
	IsDefault    bool                `json:"isDefault"`
}

// ToCategoryResponse converts a domain.Category to its DTO.
func ToCategoryResponse(c *domain.Category) CategoryResponse {
	return CategoryResponse{
		CategoryID:   c.CategoryID,
		Name:         c.Name,
		CategoryType: c.CategoryType,
		Color:        c.Color,
		IsDefault:    c.IsDefault,
	}
}

// ListCategoriesResponse wraps the list of categories.
type ListCategoriesResponse struct {
	Categories []CategoryResponse `json:"categories"`
}

// ToListCategoryResponse converts categories to DTOs.
func ToListCategoryResponse(categories []domain.Category) ListCategoriesResponse {
	res := make([]CategoryResponse, len(categories))
	for i := range categories {
		res[i] = ToCategoryResponse(&categories[i])
	}
	return ListCategoriesResponse{Categories: res}
}
