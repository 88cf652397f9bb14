package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// DocumentFlag asks to switch the publish flag of one Document row.
type DocumentFlag struct {
	DocumentID int64 `json:"documentId"`
	BranchNo   int64 `json:"branchNo"`
	Published  bool  `json:"publishFlag"`
}

// UnmarshalJSON accepts publishFlag as a boolean, as 0/1 or as a string
// holding either form. The flag is required and unknown keys are rejected.
func (f *DocumentFlag) UnmarshalJSON(b []byte) error {
	var raw struct {
		DocumentID int64           `json:"documentId"`
		BranchNo   int64           `json:"branchNo"`
		Published  json.RawMessage `json:"publishFlag"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	published, err := parseFlag(raw.Published)
	if err != nil {
		return fmt.Errorf("document %d/%d: %w", raw.DocumentID, raw.BranchNo, err)
	}

	*f = DocumentFlag{DocumentID: raw.DocumentID, BranchNo: raw.BranchNo, Published: published}
	return nil
}

func parseFlag(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return false, errors.New("publishFlag is required")
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return false, err
		}
	}
	v, err := strconv.ParseBool(text)
	if err != nil {
		return false, fmt.Errorf("publishFlag %s is not a boolean", raw)
	}
	return v, nil
}

// FileToDelete names a Document row to remove together with its file.
type FileToDelete struct {
	DocumentID int64  `json:"documentId"`
	BranchNo   int64  `json:"branchNo"`
	FileName   string `json:"fileName"`
}

// EditRequest is one edit submission against an owning record. All of it is
// applied in a single transaction or not at all.
type EditRequest struct {
	OwnerID               int64          `json:"ownerId"`
	FieldMutations        map[string]any `json:"fieldMutations"`
	DocumentsToUpdateFlag []DocumentFlag `json:"documentsToUpdateFlag"`
	FilesToDelete         []FileToDelete `json:"filesToDelete"`
}
