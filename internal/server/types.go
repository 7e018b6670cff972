package server

import "imgsearch/internal/catalog"

type SearchRequest struct {
	Path string `json:"path" binding:"required"`
	// Limit truncates the ranking; 0 returns every record.
	Limit int `json:"limit"`
}

type SearchResponse struct {
	RequestID string          `json:"request_id"`
	Matches   []catalog.Match `json:"matches"`
}

type AddImageRequest struct {
	Path string `json:"path" binding:"required"`
	Name string `json:"name" binding:"required"`
}
