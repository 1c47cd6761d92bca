// Package companies serves the companies resource: list, show by code, create,
// update and delete, backed by PostgreSQL.
package companies

import "time"

// Company is the persisted company record, keyed by its code.
type Company struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Summary is the list representation of a company.
type Summary struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Detail is a company with the ids of the invoices billed to it.
type Detail struct {
	Company
	Invoices []int64 `json:"invoices"`
}

// Change actions published after a committed write.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Change describes a committed write to a company.
type Change struct {
	Action string
	Code   string
	At     time.Time
}
