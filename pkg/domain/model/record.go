package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// HeadKey identifies a head within a repository. Kind is part of the
// identity: branch "v1" and tag "v1" are different heads.
type HeadKey struct {
	Owner string
	Repo  string
	Kind  HeadKind
	Head  string
}

func (k HeadKey) String() string {
	return k.Owner + "/" + k.Repo + "/" + k.Head
}

// ID returns the key as a single path segment, usable as a document ID
func (k HeadKey) ID() string {
	r := strings.NewReplacer("%", "%25", "/", "%2F")
	return r.Replace(k.Owner) + ":" + r.Replace(k.Repo) + ":" + r.Replace(string(k.Kind)) + ":" + r.Replace(k.Head)
}

// RevisionRecord is the persisted form of a Revision
type RevisionRecord struct {
	Kind      HeadKind  `firestore:"kind" json:"kind"`
	HeadName  string    `firestore:"head_name" json:"head_name"`
	Hash      string    `firestore:"hash" json:"hash"`
	Timestamp time.Time `firestore:"timestamp,omitempty" json:"timestamp,omitempty"`

	// change request only
	Number       int              `firestore:"number,omitempty" json:"number,omitempty"`
	TargetBranch string           `firestore:"target_branch,omitempty" json:"target_branch,omitempty"`
	TargetHash   string           `firestore:"target_hash,omitempty" json:"target_hash,omitempty"`
	Strategy     CheckoutStrategy `firestore:"strategy,omitempty" json:"strategy,omitempty"`
	Origin       Origin           `firestore:"origin,omitempty" json:"origin,omitempty"`
	Author       string           `firestore:"author,omitempty" json:"author,omitempty"`

	UpdatedAt time.Time `firestore:"updated_at" json:"updated_at"`
}

// NewRevisionRecord converts a revision into its persisted form
func NewRevisionRecord(rev Revision) (*RevisionRecord, error) {
	switch r := rev.(type) {
	case *ChangeRequestRevision:
		cr := r.ChangeRequest()
		record := &RevisionRecord{
			Kind:         HeadKindChangeRequest,
			HeadName:     cr.Name(),
			Hash:         r.Hash(),
			Number:       cr.Number(),
			TargetBranch: cr.Target().Name(),
			Strategy:     cr.CheckoutStrategy(),
			Origin:       cr.Origin(),
			Author:       cr.Author(),
		}
		if r.Target() != nil {
			record.TargetHash = r.Target().Hash()
		}
		return record, nil

	case *CommitRevision:
		record := &RevisionRecord{
			Kind:     r.Head().Kind(),
			HeadName: r.Head().Name(),
			Hash:     r.Hash(),
		}
		if tag, ok := r.Head().(*TagHead); ok {
			record.Timestamp = tag.Timestamp()
		}
		return record, nil

	default:
		return nil, goerr.New("unsupported revision type", goerr.V("type", fmt.Sprintf("%T", rev)))
	}
}

// Revision restores the revision described by the record
func (x *RevisionRecord) Revision() (Revision, error) {
	switch x.Kind {
	case HeadKindBranch:
		return NewCommitRevision(NewBranchHead(x.HeadName), x.Hash), nil
	case HeadKindTag:
		return NewCommitRevision(NewTagHead(x.HeadName, x.Timestamp), x.Hash), nil
	case HeadKindChangeRequest:
		head := NewChangeRequestHead(x.Number, x.TargetBranch, x.Strategy, x.Origin, x.Author)
		var target *CommitRevision
		if x.TargetHash != "" {
			target = NewCommitRevision(head.Target(), x.TargetHash)
		}
		return NewChangeRequestRevision(head, target, x.Hash), nil
	default:
		return nil, goerr.New("unknown head kind in revision record", goerr.V("kind", x.Kind))
	}
}
