package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Page selects one window of an ordered collection via ?page= and ?limit=
type Page struct {
	Number int
	Limit  int
}

// PageFromQuery reads the page window of the request. Missing, malformed
// or non-positive values fall back to page 1 and defaultLimit; the limit
// is capped at maxLimit.
func PageFromQuery(c *gin.Context, defaultLimit, maxLimit int) Page {
	p := Page{
		Number: positiveQuery(c, "page", 1),
		Limit:  positiveQuery(c, "limit", defaultLimit),
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

func positiveQuery(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// Paginate cuts the page out of items and describes where it sits
func Paginate[T any](items []T, p Page) ([]T, PaginationMetadata) {
	start := min((p.Number-1)*p.Limit, len(items))
	end := min(start+p.Limit, len(items))
	return items[start:end], NewPaginationMetadata(len(items), p.Number, p.Limit)
}

// PaginationMetadata represents the standardized pagination metadata
type PaginationMetadata struct {
	TotalItems   int `json:"totalItems"`
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// NewPaginationMetadata creates a new pagination metadata object
func NewPaginationMetadata(totalItems, page, limit int) PaginationMetadata {
	totalPages := (totalItems + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}
	return PaginationMetadata{
		TotalItems:   totalItems,
		CurrentPage:  page,
		TotalPages:   totalPages,
		ItemsPerPage: limit,
	}
}

// SendPaginatedResponse sends a standardized paginated API response
func SendPaginatedResponse(c *gin.Context, statusCode int, data interface{}, pagination PaginationMetadata) {
	c.JSON(statusCode, gin.H{
		"data":       data,
		"pagination": pagination,
	})
}

// SendDataResponse wraps a payload in the standard data envelope
func SendDataResponse(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{"data": data})
}

// SendErrorResponse sends a standardized error response
func SendErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}
