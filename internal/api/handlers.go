package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gridcat/internal/collection"
	"github.com/starford/gridcat/internal/collectionservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *collectionservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *collectionservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListCollections handles GET /api/collections.
//
//	@Summary		List configured collections
//	@Tags			collections
//	@Produce		json
//	@Success		200	{object}	CollectionListResponse
//	@Security		BearerAuth
//	@Router			/collections [get]
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CollectionListResponse{Collections: h.svc.Collections(r.Context())})
}

// UpdateCollection handles POST /api/collections/{name}/update.
//
//	@Summary		Update a collection's indexes
//	@Tags			collections
//	@Produce		json
//	@Param			name		path		string	true	"Collection name"
//	@Param			collection	query		string	false	"Policy for the top node"	Enums(always, test, nocheck, never)
//	@Param			children	query		string	false	"Policy for descendants"	Enums(always, test, nocheck, never)
//	@Success		200			{object}	UpdateResult
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	UpdateErrorResponse
//	@Security		BearerAuth
//	@Router			/collections/{name}/update [post]
func (h *Handler) UpdateCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	self, err := policyParam(r, "collection")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	children, err := policyParam(r, "children")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	res, err := h.svc.UpdateCollection(r.Context(), name, self, children)
	if err != nil {
		if res == nil {
			writeError(w, "update collection", err)
			return
		}
		writeJSON(w, statusFor(err), UpdateErrorResponse{Error: err.Error(), Update: *res})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListRuns handles GET /api/collections/{name}/runs.
//
//	@Summary		Recent update runs of a collection
//	@Tags			collections
//	@Produce		json
//	@Param			name	path		string	true	"Collection name"
//	@Param			limit	query		int		false	"Max runs"
//	@Success		200		{object}	RunListResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{name}/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(r.Context(), chi.URLParam(r, "name"), limit)
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// ListNodes handles GET /api/nodes.
//
//	@Summary		Recorded node states
//	@Tags			collections
//	@Produce		json
//	@Param			collection	query		string	false	"Collection name"
//	@Success		200			{object}	NodeListResponse
//	@Security		BearerAuth
//	@Router			/nodes [get]
func (h *Handler) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.Nodes(r.Context(), r.URL.Query().Get("collection"))
	if err != nil {
		writeError(w, "list nodes", err)
		return
	}
	writeJSON(w, http.StatusOK, NodeListResponse{Nodes: nodes})
}

// IndexKind handles GET /api/index/kind.
//
//	@Summary		Classify an index file
//	@Tags			index
//	@Produce		json
//	@Param			path	query		string	true	"Index file path"
//	@Success		200		{object}	IndexKindResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index/kind [get]
func (h *Handler) IndexKind(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	kind, err := h.svc.IndexKind(r.Context(), path)
	if err != nil {
		writeError(w, "index kind", err)
		return
	}
	writeJSON(w, http.StatusOK, IndexKindResponse{Path: path, Kind: kind})
}

// IndexChildren handles GET /api/index/children.
//
//	@Summary		List the children of a partition index
//	@Tags			index
//	@Produce		json
//	@Param			path	query		string	true	"Partition index path"
//	@Success		200		{object}	ChildrenResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index/children [get]
func (h *Handler) IndexChildren(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	kids, err := h.svc.Children(r.Context(), path)
	if err != nil {
		writeError(w, "index children", err)
		return
	}
	writeJSON(w, http.StatusOK, ChildrenResponse{Path: path, Children: kids})
}

// IndexMFiles handles GET /api/index/mfiles.
//
//	@Summary		List the members of a leaf index
//	@Tags			index
//	@Produce		json
//	@Param			path	query		string	true	"Leaf index path"
//	@Success		200		{object}	MFilesResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index/mfiles [get]
func (h *Handler) IndexMFiles(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	files, err := h.svc.MFiles(r.Context(), path)
	if err != nil {
		writeError(w, "index mfiles", err)
		return
	}
	writeJSON(w, http.StatusOK, MFilesResponse{Path: path, Files: files})
}

// policyParam reads an optional policy query parameter.
func policyParam(r *http.Request, key string) (collection.Policy, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return "", nil
	}
	return collection.ParsePolicy(v)
}
