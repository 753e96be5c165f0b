package models

import (
	"yatri/pkg/validation"

	dErrors "yatri/pkg/domain-errors"
	s "yatri/pkg/string"
)

// SubmitIdentityRequest is the raw KYC submission body. Validation is strict:
// no partial processing happens on any field failure.
type SubmitIdentityRequest struct {
	SubjectID       string           `json:"subject_id" validate:"required,subject_address"`
	TripID          string           `json:"trip_id,omitempty" validate:"omitempty,min=1,max=64"`
	DID             string           `json:"did,omitempty" validate:"omitempty,startswith=did:,max=256"`
	FullName        string           `json:"full_name" validate:"required,notblank,max=120"`
	Destination     string           `json:"destination" validate:"required,notblank,max=120"`
	StartDate       string           `json:"start_date" validate:"required,iso_date"`
	EndDate         string           `json:"end_date" validate:"required,iso_date"`
	EncryptedPIIRef string           `json:"encrypted_pii_ref,omitempty" validate:"omitempty,max=512"`
	Contacts        []ContactRequest `json:"contacts,omitempty" validate:"omitempty,max=5,dive"`
}

// ContactRequest is one submitted emergency contact.
type ContactRequest struct {
	Name  string `json:"name" validate:"required,notblank,max=120"`
	Phone string `json:"phone" validate:"required,notblank,max=32"`
}

// Validate trims and checks the submission against the KYC schema.
func (r *SubmitIdentityRequest) Validate() error {
	s.TrimStrings(&r.SubjectID, &r.TripID, &r.DID, &r.FullName, &r.Destination, &r.StartDate, &r.EndDate)
	if err := validation.Validate(r); err != nil {
		return err
	}
	// ISO dates sort lexicographically, so a string compare orders them.
	if r.EndDate < r.StartDate {
		return dErrors.NewValidation("end_date must not precede start_date", []dErrors.FieldError{
			{Field: "end_date", Message: "end_date must not precede start_date"},
		})
	}
	return nil
}

// ContactModels converts the request contacts into domain contacts.
func (r *SubmitIdentityRequest) ContactModels() []Contact {
	if len(r.Contacts) == 0 {
		return nil
	}
	out := make([]Contact, 0, len(r.Contacts))
	for _, c := range r.Contacts {
		out = append(out, Contact{Name: c.Name, Phone: c.Phone})
	}
	return out
}
