package model

import "fmt"

// Revision is a snapshot of a head at a point in time
type Revision interface {
	Head() Head
	Equal(other Revision) bool
	String() string
}

// MergeRevision is a change request revision that can be compared while
// ignoring the target branch side
type MergeRevision interface {
	Revision
	// IsMerge reports whether the revision is the change request merged into its target
	IsMerge() bool
	// Equivalent reports whether other has the same change request side
	Equivalent(other MergeRevision) bool
	// Target returns the target branch revision
	Target() *CommitRevision
}

// CommitRevision is a head pinned to a commit hash
type CommitRevision struct {
	head Head
	hash string
}

// NewCommitRevision creates a commit revision
func NewCommitRevision(head Head, hash string) *CommitRevision {
	return &CommitRevision{head: head, hash: hash}
}

func (r *CommitRevision) Head() Head   { return r.head }
func (r *CommitRevision) Hash() string { return r.hash }

// Equal reports whether other is a commit revision of the same head and hash
func (r *CommitRevision) Equal(other Revision) bool {
	o, ok := other.(*CommitRevision)
	if !ok || r == nil || o == nil {
		return false
	}
	return HeadEqual(r.head, o.head) && r.hash == o.hash
}

func (r *CommitRevision) String() string {
	return r.hash
}

// ChangeRequestRevision pins a change request to its head hash and the target revision
type ChangeRequestRevision struct {
	head   *ChangeRequestHead
	target *CommitRevision
	hash   string
}

// NewChangeRequestRevision creates a change request revision
func NewChangeRequestRevision(head *ChangeRequestHead, target *CommitRevision, hash string) *ChangeRequestRevision {
	return &ChangeRequestRevision{head: head, target: target, hash: hash}
}

func (r *ChangeRequestRevision) Head() Head                        { return r.head }
func (r *ChangeRequestRevision) ChangeRequest() *ChangeRequestHead { return r.head }
func (r *ChangeRequestRevision) Target() *CommitRevision           { return r.target }
func (r *ChangeRequestRevision) Hash() string                      { return r.hash }

// IsMerge reports whether the change request is checked out merged into its target
func (r *ChangeRequestRevision) IsMerge() bool {
	return r.head.CheckoutStrategy() == CheckoutMerge
}

// Equivalent compares the change request side only; target moves are ignored
func (r *ChangeRequestRevision) Equivalent(other MergeRevision) bool {
	o, ok := other.(*ChangeRequestRevision)
	if !ok || r == nil || o == nil {
		return false
	}
	return HeadEqual(r.head, o.head) && r.hash == o.hash
}

// Equal is Equivalent plus, for merge checkouts, an identical target revision
func (r *ChangeRequestRevision) Equal(other Revision) bool {
	o, ok := other.(*ChangeRequestRevision)
	if !ok || !r.Equivalent(o) {
		return false
	}
	if !r.IsMerge() {
		return true
	}
	if r.target == nil || o.target == nil {
		return r.target == nil && o.target == nil
	}
	return r.target.Equal(o.target)
}

func (r *ChangeRequestRevision) String() string {
	if r.IsMerge() && r.target != nil {
		return fmt.Sprintf("%s+%s", r.hash, r.target.Hash())
	}
	return r.hash
}
