package domain

import "time"

type KnowledgeBaseStatus string

const (
	KBStatusEmpty    KnowledgeBaseStatus = "empty"
	KBStatusIndexing KnowledgeBaseStatus = "indexing"
	KBStatusReady    KnowledgeBaseStatus = "ready"
	KBStatusFailed   KnowledgeBaseStatus = "failed"
)

// KnowledgeBase is corpus-scoped metadata. Collection names the dense index
// collection owned by this knowledge base.
type KnowledgeBase struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Collection    string              `json:"collection"`
	Status        KnowledgeBaseStatus `json:"status"`
	Error         string              `json:"error,omitempty"`
	DocumentCount int                 `json:"document_count"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is one source file inside a knowledge base.
type Document struct {
	ID              string         `json:"id"`
	KnowledgeBaseID string         `json:"knowledge_base_id"`
	Filename        string         `json:"filename"`
	MimeType        string         `json:"mime_type"`
	StoragePath     string         `json:"storage_path"`
	ContentType     ContentType    `json:"content_type,omitempty"`
	Status          DocumentStatus `json:"status"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
