package api

import (
	"github.com/starford/mdql/internal/index"
	"github.com/starford/mdql/internal/report"
	"github.com/starford/mdql/internal/taskservice"
	"github.com/starford/mdql/internal/writer"
)

// QueryRequest is the request body for a structured predicate query.
type QueryRequest struct {
	Path   string         `json:"path" example:"todo.md" validate:"required"`
	Filter map[string]any `json:"filter"`
}

// MQLRequest is the request body for a mini-language query.
type MQLRequest struct {
	Query string `json:"query" example:"SELECT * FROM todo.md WHERE completed = false" validate:"required"`
	// Path overrides the FROM clause when set.
	Path  string `json:"path,omitempty" example:"todo.md"`
	Limit int    `json:"limit,omitempty" example:"10"`
}

// MutateRequest is the request body for a single edit.
type MutateRequest struct {
	Path     string          `json:"path" example:"todo.md" validate:"required"`
	Mutation writer.Mutation `json:"mutation" validate:"required"`
	IfMatch  string          `json:"if_match,omitempty" example:"abc123..."`
}

// File is the parsed document response type (aliased from the domain layer).
type File = taskservice.File

// QueryResult is the query response type (aliased from the domain layer).
type QueryResult = taskservice.QueryResult

// Summary is the section summary response type (aliased from the report layer).
type Summary = report.Summary

// FileListResponse wraps the task file listing.
type FileListResponse struct {
	Files []index.FileRow `json:"files" validate:"required"`
	Total int             `json:"total" example:"3" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}
