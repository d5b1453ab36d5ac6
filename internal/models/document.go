package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// DocumentType distinguishes catalogue entries.
type DocumentType string

const (
	DocumentFile   DocumentType = "FILE"
	DocumentFolder DocumentType = "FOLDER"
)

// AccessLevel is the default visibility rule for a document.
type AccessLevel string

const (
	AccessPrivate   AccessLevel = "PRIVATE"
	AccessStudents  AccessLevel = "STUDENTS"
	AccessCompanies AccessLevel = "COMPANIES"
	AccessPublic    AccessLevel = "PUBLIC"
)

// Valid reports whether the access level is one of the known values.
func (l AccessLevel) Valid() bool {
	switch l {
	case AccessPrivate, AccessStudents, AccessCompanies, AccessPublic:
		return true
	}
	return false
}

// ScanStatus tracks the antivirus verdict for the current file content.
type ScanStatus string

const (
	ScanSkipped  ScanStatus = "SKIPPED"
	ScanPending  ScanStatus = "PENDING"
	ScanClean    ScanStatus = "CLEAN"
	ScanInfected ScanStatus = "INFECTED"
	ScanFailed   ScanStatus = "FAILED"
)

// Terminal reports whether the status is a final verdict.
func (s ScanStatus) Terminal() bool {
	return s != ScanPending
}

// EmplacementRoot is the logical top of the folder hierarchy.
const EmplacementRoot = "root"

// Document is the central catalogue entity, either a file or a folder.
// For folders the file-only columns stay at their zero values.
type Document struct {
	ID          string         `db:"id" json:"id"`
	Type        DocumentType   `db:"doc_type" json:"type"`
	CreatorID   string         `db:"creator_id" json:"creatorId"`
	CreatorType ActorType      `db:"creator_type" json:"creatorType"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	Tags        pq.StringArray `db:"tags" json:"tags"`
	Emplacement string         `db:"emplacement" json:"emplacement"`
	AccessLevel AccessLevel    `db:"access_level" json:"accessLevel"`

	Link          string  `db:"link" json:"link,omitempty"`
	Extension     string  `db:"extension" json:"extension,omitempty"`
	MimeType      string  `db:"mime_type" json:"mimeType,omitempty"`
	SizeBytes     int64   `db:"size_bytes" json:"sizeBytes"`
	ThumbnailLink *string `db:"thumbnail_link" json:"thumbnailLink,omitempty"`
	Version       int     `db:"version" json:"version"`

	ScanStatus  ScanStatus `db:"scan_status" json:"scanStatus"`
	Quarantined bool       `db:"quarantined" json:"quarantined"`

	Pinned    bool       `db:"pinned" json:"pinned"`
	OpenedAt  *time.Time `db:"opened_at" json:"openedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsFolder reports whether the document is a folder.
func (d *Document) IsFolder() bool {
	return d.Type == DocumentFolder
}

// FullPath returns the path identifying a folder as a parent, which is the
// emplacement every direct child carries.
func (d *Document) FullPath() string {
	return d.Emplacement + "/" + d.Title
}

// DocumentPatch carries the mutable metadata fields for an update. Nil fields
// are left untouched.
type DocumentPatch struct {
	Title       *string
	Description *string
	Tags        []string
	AccessLevel *AccessLevel
	Pinned      *bool
}

// Empty reports whether the patch changes nothing.
func (p DocumentPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Tags == nil && p.AccessLevel == nil && p.Pinned == nil
}

// DocumentFilter narrows listing and search queries. All set fields compose
// with AND semantics.
type DocumentFilter struct {
	CreatorID   string
	Type        DocumentType
	Emplacement string
	Query       string
	Tags        []string
	MinSize     *int64
	MaxSize     *int64
	From        *time.Time
	To          *time.Time
	SortBy      string
	SortOrder   string
	Limit       int
	Offset      int
}

// BulkResult reports per-id outcomes of a bulk operation. The two lists are
// disjoint; callers must design for partial success.
type BulkResult struct {
	SuccessIDs []string `json:"successIds"`
	FailedIDs  []string `json:"failedIds"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NormalizeTags deduplicates tags preserving order and case, dropping blanks.
func NormalizeTags(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	result := make([]string, 0, len(raw))
	for _, tag := range raw {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
