package model

import "time"

// Repository identifies a GitHub repository
type Repository struct {
	Owner string
	Name  string
}

func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Observation is a head revision seen by the host, waiting for a build decision
type Observation struct {
	DeliveryID string
	Repository Repository
	Revision   Revision
}

// Head returns the head of the observed revision
func (x *Observation) Head() Head {
	return x.Revision.Head()
}

// Key returns the storage key of the observed head
func (x *Observation) Key() HeadKey {
	return HeadKey{
		Owner: x.Repository.Owner,
		Repo:  x.Repository.Name,
		Kind:  x.Head().Kind(),
		Head:  x.Head().Name(),
	}
}

// BuildDecision is the outcome of evaluating an observation
type BuildDecision struct {
	Key       HeadKey
	Current   Revision
	Previous  Revision // nil on first observation
	Automatic bool
	Request   *BuildRequest // set when a build was requested
}

// BuildRequest is sent to the build system when a build is automatic
type BuildRequest struct {
	ID          string    `json:"id"`
	DeliveryID  string    `json:"delivery_id,omitempty"`
	Repository  string    `json:"repository"`
	Head        string    `json:"head"`
	HeadKind    HeadKind  `json:"head_kind"`
	Revision    string    `json:"revision"`
	RequestedAt time.Time `json:"requested_at"`
}
