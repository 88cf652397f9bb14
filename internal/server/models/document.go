// Package models defines server-side data models persisted in the database
// and the request shapes the services accept.
package models

import "time"

// Document binds one stored file to its owning record. The pair
// (DocumentID, BranchNo) is the key; BranchNo is unique across all owners.
type Document struct {
	DocumentID   int64     `json:"documentId"`
	BranchNo     int64     `json:"branchNo"`
	UpdFactoryID int64     `json:"updFactoryId"`
	FileName     string    `json:"fileName"`
	Published    bool      `json:"published"`
	UpdateDate   time.Time `json:"updateDate"`
	UpdateUserID int64     `json:"updateUserId"`
}

// Uploader identifies who performs an upload or an edit. It is taken from
// the bearer token, never from the request body.
type Uploader struct {
	UserID    int64
	FactoryID int64
}

// Chunk is one piece of a chunked upload. Data is consumed exactly once.
type Chunk struct {
	OwnerID   int64
	FileName  string
	Published bool
	Offset    int64
	IsLast    bool
}

// UploadResult is returned for every accepted chunk; BranchNo is set only
// after the last chunk registered the file.
type UploadResult struct {
	Written    int64 `json:"written"`
	Registered bool  `json:"registered"`
	BranchNo   int64 `json:"branchNo,omitempty"`
}
