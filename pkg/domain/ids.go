// Package domain holds the typed identifiers and actor model shared across
// bounded contexts. IDs are distinct types over uuid.UUID so a StepID can
// never be passed where a DossierID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "dossierflow/pkg/domain-errors"
)

type (
	// DossierID identifies one client/product engagement.
	DossierID uuid.UUID
	// StepID identifies one unit of work within a dossier.
	StepID uuid.UUID
	// ClientID references the client owning a dossier.
	ClientID uuid.UUID
	// ExpertID references the expert assigned to a dossier.
	ExpertID uuid.UUID
	// ProductID references the fiscal product a dossier applies for.
	ProductID uuid.UUID
)

func (id DossierID) String() string { return uuid.UUID(id).String() }
func (id StepID) String() string    { return uuid.UUID(id).String() }
func (id ClientID) String() string  { return uuid.UUID(id).String() }
func (id ExpertID) String() string  { return uuid.UUID(id).String() }
func (id ProductID) String() string { return uuid.UUID(id).String() }

func (id DossierID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id StepID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ClientID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ExpertID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ProductID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// NewDossierID mints a fresh dossier identifier.
func NewDossierID() DossierID { return DossierID(uuid.New()) }

// NewStepID mints a fresh step identifier.
func NewStepID() StepID { return StepID(uuid.New()) }

// NewClientID mints a fresh client identifier.
func NewClientID() ClientID { return ClientID(uuid.New()) }

// NewExpertID mints a fresh expert identifier.
func NewExpertID() ExpertID { return ExpertID(uuid.New()) }

// NewProductID mints a fresh product identifier.
func NewProductID() ProductID { return ProductID(uuid.New()) }

// The aggregate is persisted as a JSON document, so IDs must round-trip
// through their canonical text form rather than the raw byte array.

func (id DossierID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id StepID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id ClientID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id ExpertID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id ProductID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *DossierID) UnmarshalText(text []byte) error { return (*uuid.UUID)(id).UnmarshalText(text) }
func (id *StepID) UnmarshalText(text []byte) error    { return (*uuid.UUID)(id).UnmarshalText(text) }
func (id *ClientID) UnmarshalText(text []byte) error  { return (*uuid.UUID)(id).UnmarshalText(text) }
func (id *ExpertID) UnmarshalText(text []byte) error  { return (*uuid.UUID)(id).UnmarshalText(text) }
func (id *ProductID) UnmarshalText(text []byte) error { return (*uuid.UUID)(id).UnmarshalText(text) }

func parseUUID(raw, what string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "%s is required", what)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "%s is not a valid UUID", what)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "%s must not be the nil UUID", what)
	}
	return parsed, nil
}

// ParseDossierID validates external input at a trust boundary.
func ParseDossierID(raw string) (DossierID, error) {
	parsed, err := parseUUID(raw, "dossier id")
	return DossierID(parsed), err
}

// ParseStepID validates external input at a trust boundary.
func ParseStepID(raw string) (StepID, error) {
	parsed, err := parseUUID(raw, "step id")
	return StepID(parsed), err
}

// ParseClientID validates external input at a trust boundary.
func ParseClientID(raw string) (ClientID, error) {
	parsed, err := parseUUID(raw, "client id")
	return ClientID(parsed), err
}

// ParseExpertID validates external input at a trust boundary.
func ParseExpertID(raw string) (ExpertID, error) {
	parsed, err := parseUUID(raw, "expert id")
	return ExpertID(parsed), err
}

// ParseProductID validates external input at a trust boundary.
func ParseProductID(raw string) (ProductID, error) {
	parsed, err := parseUUID(raw, "product id")
	return ProductID(parsed), err
}
