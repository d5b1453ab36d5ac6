package dto

import (
	"encoding/json"
	"strings"
	"time"
)

// TagList normalizes the loose tag shapes accepted at the boundary: a JSON
// array of strings, a single comma-separated string, or a JSON-encoded array
// inside a string. Core logic only ever sees the parsed slice.
type TagList []string

// UnmarshalJSON accepts either a string array or a string variant.
func (t *TagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = ParseTagList(raw)
	return nil
}

// ParseTagList parses the string variants of a tag list.
func ParseTagList(raw string) TagList {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			return list
		}
	}
	parts := strings.Split(raw, ",")
	result := make(TagList, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// UploadDocumentRequest carries metadata submitted alongside a file upload.
type UploadDocumentRequest struct {
	Title       string `form:"title" json:"title"`
	Description string `form:"description" json:"description"`
	Tags        string `form:"tags" json:"tags"`
	Emplacement string `form:"emplacement" json:"emplacement"`
	AccessLevel string `form:"accessLevel" json:"accessLevel"`
}

// CreateFolderRequest creates a folder node in the hierarchy.
type CreateFolderRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Emplacement string `json:"emplacement"`
	AccessLevel string `json:"accessLevel"`
}

// UpdateDocumentRequest is a partial metadata patch. ExpectedUpdatedAt, when
// present, arms the optimistic concurrency guard.
type UpdateDocumentRequest struct {
	Title             *string    `json:"title"`
	Description       *string    `json:"description"`
	Tags              *TagList   `json:"tags"`
	AccessLevel       *string    `json:"accessLevel"`
	Pinned            *bool      `json:"pinned"`
	ExpectedUpdatedAt *time.Time `json:"expectedUpdatedAt"`
}

// MoveDocumentsRequest relocates a set of documents under a target folder path.
type MoveDocumentsRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1"`
	Target string   `json:"target" validate:"required"`
}

// BulkIDsRequest addresses a set of documents.
type BulkIDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// SearchQuery captures the composable search filters from query parameters.
type SearchQuery struct {
	Query       string `form:"q"`
	Type        string `form:"type"`
	Emplacement string `form:"emplacement"`
	Tags        string `form:"tags"`
	MinSize     *int64 `form:"minSize"`
	MaxSize     *int64 `form:"maxSize"`
	From        string `form:"from"`
	To          string `form:"to"`
	SortBy      string `form:"sortBy"`
	SortOrder   string `form:"sortOrder"`
	Limit       int    `form:"limit"`
	Offset      int    `form:"offset"`
}
