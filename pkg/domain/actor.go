package domain

import (
	"github.com/google/uuid"

	dErrors "dossierflow/pkg/domain-errors"
)

// ActorKind distinguishes the three parties that may touch a dossier. The
// engine trusts the resolver at the edge to have already authorized the
// actor for the specific dossier; authorization itself lives outside.
type ActorKind string

const (
	ActorClient ActorKind = "client"
	ActorExpert ActorKind = "expert"
	ActorAdmin  ActorKind = "admin"
)

var validActorKinds = map[ActorKind]bool{
	ActorClient: true,
	ActorExpert: true,
	ActorAdmin:  true,
}

// ParseActorKind constructs an ActorKind from external input.
func ParseActorKind(raw string) (ActorKind, error) {
	kind := ActorKind(raw)
	if !validActorKinds[kind] {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown actor kind %q", raw)
	}
	return kind, nil
}

// Actor is the resolved caller identity stamped on every transition.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Kind ActorKind `json:"kind"`
}

func (a Actor) IsZero() bool { return a.ID == uuid.Nil && a.Kind == "" }

func (a Actor) String() string {
	return string(a.Kind) + ":" + a.ID.String()
}
