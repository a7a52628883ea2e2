package model

import "time"

// DocumentType identifies what kind of real-estate document a text came from.
type DocumentType string

const (
	DocTitleDeed     DocumentType = "title_deed"
	DocSaleAgreement DocumentType = "sale_agreement"
	DocOther         DocumentType = "other"
)

// DocumentStatus tracks the external extraction lifecycle. The engine only
// ever sees completed documents; it never triggers or retries extraction.
type DocumentStatus string

const (
	DocStatusProcessing DocumentStatus = "processing"
	DocStatusCompleted  DocumentStatus = "completed"
	DocStatusFailed     DocumentStatus = "failed"
)

// Document is a completed document as exposed by the document store.
type Document struct {
	ID            string         `json:"document_id"`
	PropertyID    string         `json:"property_id"`
	Type          DocumentType   `json:"document_type"`
	Filename      string         `json:"filename"`
	ExtractedText string         `json:"extracted_text"`
	Status        DocumentStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}
