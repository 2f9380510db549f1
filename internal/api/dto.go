package api

import (
	"github.com/starford/gridcat/internal/catalog"
	"github.com/starford/gridcat/internal/collectionservice"
	"github.com/starford/gridcat/internal/models"
)

// CollectionInfo is a configured collection (aliased from the domain layer).
type CollectionInfo = collectionservice.CollectionInfo

// ChildInfo is one partition child (aliased from the domain layer).
type ChildInfo = collectionservice.ChildInfo

// UpdateResult is the outcome of an update (aliased from the domain layer).
type UpdateResult = collectionservice.UpdateResult

// CollectionListResponse wraps the configured collections.
type CollectionListResponse struct {
	Collections []CollectionInfo `json:"collections" validate:"required"`
}

// NodeListResponse wraps ledger entries.
type NodeListResponse struct {
	Nodes []catalog.NodeRow `json:"nodes" validate:"required"`
}

// RunListResponse wraps recent update runs.
type RunListResponse struct {
	Runs []catalog.RunRow `json:"runs" validate:"required"`
}

// IndexKindResponse reports the kind of an index file.
type IndexKindResponse struct {
	Path string `json:"path" example:"/data/gfs/gfs.gcx" validate:"required"`
	Kind string `json:"kind" example:"partition" validate:"required"`
}

// ChildrenResponse lists the children of a partition index.
type ChildrenResponse struct {
	Path     string      `json:"path" validate:"required"`
	Children []ChildInfo `json:"children" validate:"required"`
}

// MFilesResponse lists the members of a leaf index.
type MFilesResponse struct {
	Path  string         `json:"path" validate:"required"`
	Files []models.MFile `json:"files" validate:"required"`
}

// UpdateErrorResponse carries the partial result of a failed update.
type UpdateErrorResponse struct {
	Error  string       `json:"error" validate:"required"`
	Update UpdateResult `json:"update"`
}
