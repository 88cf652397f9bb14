// Package models holds the client-side view of the server's responses.
package models

import (
	"encoding/json"
	"time"
)

// Envelope wraps every server response.
type Envelope struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Document is one registered file of an owning record.
type Document struct {
	DocumentID   int64     `json:"documentId"`
	BranchNo     int64     `json:"branchNo"`
	UpdFactoryID int64     `json:"updFactoryId"`
	FileName     string    `json:"fileName"`
	Published    bool      `json:"published"`
	UpdateDate   time.Time `json:"updateDate"`
	UpdateUserID int64     `json:"updateUserId"`
}

// ChunkResult is the server's answer to one uploaded chunk.
type ChunkResult struct {
	Written    int64 `json:"written"`
	Registered bool  `json:"registered"`
	BranchNo   int64 `json:"branchNo"`
}
