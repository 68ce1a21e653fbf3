package models

import id "geoseal/pkg/domain"

// RecordRegistered is raised when a registration commits to the ledger.
type RecordRegistered struct {
	RecordID id.RecordID
	Owner    id.OwnerID
	Handle   id.Handle
}

// RecordRevealed is raised when a verified reveal commits.
type RecordRevealed struct {
	RecordID id.RecordID
	Owner    id.OwnerID
	Handle   id.Handle
	Value    int64
}
