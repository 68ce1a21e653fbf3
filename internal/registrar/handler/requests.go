package handler

import (
	"strings"

	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
	"geoseal/pkg/fixedpoint"
)

// CreateRecordRequest is the HTTP request body for POST /records.
// Coordinates travel as decimal strings and are scaled to fixed-point form
// during validation, so values never pass through float64.
type CreateRecordRequest struct {
	RecordID  string `json:"record_id"`
	Label     string `json:"label"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`

	// Parsed values (populated by Validate)
	parsedRecordID  id.RecordID
	parsedLatitude  int64
	parsedLongitude int64
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateRecordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.RecordID = strings.TrimSpace(r.RecordID)
	if r.RecordID == "" {
		return dErrors.New(dErrors.CodeValidation, "record_id is required")
	}
	recordID, err := id.ParseRecordID(r.RecordID)
	if err != nil {
		return err
	}
	r.parsedRecordID = recordID

	r.Label = strings.TrimSpace(r.Label)
	if r.Label == "" {
		return dErrors.New(dErrors.CodeValidation, "label is required")
	}
	if len(r.Label) > 128 {
		return dErrors.New(dErrors.CodeValidation, "label must be 128 characters or less")
	}

	lat, err := fixedpoint.ParseDecimal(r.Latitude)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "latitude is invalid")
	}
	r.parsedLatitude = lat

	lon, err := fixedpoint.ParseDecimal(r.Longitude)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "longitude is invalid")
	}
	r.parsedLongitude = lon

	return nil
}
