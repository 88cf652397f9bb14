package models

import "time"

// Sale is the owning record of a set of documents. Its DocumentID equals
// SaleID and names the storage directory.
type Sale struct {
	SaleID       int64
	DocumentID   int64
	ProductNo    string
	Quantity     int64
	Remarks      string
	Status       int64
	FactoryID    int64
	UpdateDate   time.Time
	UpdateUserID int64
}

// SaleInput carries the caller-controlled columns of a new Sale.
type SaleInput struct {
	ProductNo string `json:"productNo"`
	Quantity  int64  `json:"quantity"`
	Remarks   string `json:"remarks"`
	Status    int64  `json:"status"`
}

// CopyAddRequest creates a new Sale from an existing one, copying the named
// files of the source owner directory.
type CopyAddRequest struct {
	FromSaleID int64     `json:"fromSaleId"`
	Sale       SaleInput `json:"sale"`
	Files      []string  `json:"files"`
	Published  bool      `json:"published"`
}
