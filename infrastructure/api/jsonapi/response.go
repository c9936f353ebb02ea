// Package jsonapi builds JSON:API documents for card and candidate
// responses. See https://jsonapi.org/format/.
package jsonapi

// MediaType is the JSON:API content type.
const MediaType = "application/vnd.api+json"

// Document is a top-level JSON:API document. A document carries either
// data (with optional included resources) or errors.
type Document struct {
	Data     any     `json:"data,omitempty"`
	Meta     *Meta   `json:"meta,omitempty"`
	Included []any   `json:"included,omitempty"`
	Errors   []Error `json:"errors,omitempty"`
}

// Meta holds non-standard meta-information.
type Meta map[string]any

// Resource is a JSON:API resource object.
type Resource struct {
	Type          string        `json:"type"`
	ID            string        `json:"id"`
	Attributes    any           `json:"attributes"`
	Relationships Relationships `json:"relationships,omitempty"`
	Meta          *Meta         `json:"meta,omitempty"`
}

// Relationships maps relationship names to their linkage.
type Relationships map[string]*Relationship

// Relationship holds resource linkage.
type Relationship struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// ResourceIdentifier points at a resource by type and id.
type ResourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Error is a JSON:API error object.
type Error struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
	Code   string `json:"code,omitempty"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
	Meta   *Meta  `json:"meta,omitempty"`
}

// NewResource creates a resource.
func NewResource(resourceType, id string, attrs any) *Resource {
	return &Resource{Type: resourceType, ID: id, Attributes: attrs}
}

// NewSingleResponse wraps one resource.
func NewSingleResponse(resource *Resource) *Document {
	return &Document{Data: resource}
}

// NewListResponseWithMeta wraps a resource list and its meta. An empty
// list serializes as [] rather than null.
func NewListResponseWithMeta(resources []*Resource, meta Meta) *Document {
	if resources == nil {
		resources = []*Resource{}
	}
	return &Document{Data: resources, Meta: &meta}
}

// NewErrorResponse wraps one or more errors.
func NewErrorResponse(errs ...Error) *Document {
	return &Document{Errors: errs}
}

// NewError creates an error with status, title and detail.
func NewError(status, title, detail string) Error {
	return Error{Status: status, Title: title, Detail: detail}
}
