package core

// ActionKind names a workflow action.
type ActionKind string

const (
	SubmitKind           ActionKind = "submit"
	StartResearchKind    ActionKind = "startResearch"
	CompleteResearchKind ActionKind = "completeResearch"
	StartReviewKind      ActionKind = "startReview"
	SubmitReviewKind     ActionKind = "submitReview"
	ResubmitKind         ActionKind = "resubmitAfterRevision"
	PublishKind          ActionKind = "publish"
	ArchiveKind          ActionKind = "archive"
)

var AllActionKinds = []ActionKind{
	SubmitKind,
	StartResearchKind,
	CompleteResearchKind,
	StartReviewKind,
	SubmitReviewKind,
	ResubmitKind,
	PublishKind,
	ArchiveKind,
}

// An Action is a requested transition. The set of actions is closed: only the types of this package implement it.
type Action interface {
	Kind() ActionKind
	expected() Status
}

// Expect can be embedded into every action. If IfStatus is set and the stored status differs, the action fails with ErrConflict.
type Expect struct {
	IfStatus Status `json:"ifStatus,omitempty"`
}

func (e Expect) expected() Status {
	return e.IfStatus
}

type Submit struct {
	Expect
	Notes string `json:"notes,omitempty"`
}

func (Submit) Kind() ActionKind { return SubmitKind }

type StartResearch struct {
	Expect
}

func (StartResearch) Kind() ActionKind { return StartResearchKind }

type CompleteResearch struct {
	Expect
	ReferenceIDs []string `json:"referenceIds"`
	Notes        string   `json:"researchNotes"`
}

func (CompleteResearch) Kind() ActionKind { return CompleteResearchKind }

type StartReview struct {
	Expect
}

func (StartReview) Kind() ActionKind { return StartReviewKind }

type Decision string

const (
	Approve Decision = "APPROVE"
	Revise  Decision = "REVISE"
	Reject  Decision = "REJECT"
)

func (d Decision) Valid() bool {
	return d == Approve || d == Revise || d == Reject
}

type SubmitReview struct {
	Expect
	Decision Decision `json:"decision"`
	Notes    string   `json:"reviewNotes"`
}

func (SubmitReview) Kind() ActionKind { return SubmitReviewKind }

// Resubmit returns a revised article into the workflow. If Research is true, it goes back to research, else directly to review.
// Changes can be made in the same step.
type Resubmit struct {
	Expect
	Research bool         `json:"research,omitempty"`
	Notes    string       `json:"notes,omitempty"`
	Changes  ArticlePatch `json:"changes"`
}

func (Resubmit) Kind() ActionKind { return ResubmitKind }

type Publish struct {
	Expect
}

func (Publish) Kind() ActionKind { return PublishKind }

type Archive struct {
	Expect
	Notes string `json:"notes,omitempty"`
}

func (Archive) Kind() ActionKind { return ArchiveKind }

// NewAction returns a pointer to a zero action of the given kind, which can be decoded into.
func NewAction(kind ActionKind) (Action, bool) {
	switch kind {
	case SubmitKind:
		return &Submit{}, true
	case StartResearchKind:
		return &StartResearch{}, true
	case CompleteResearchKind:
		return &CompleteResearch{}, true
	case StartReviewKind:
		return &StartReview{}, true
	case SubmitReviewKind:
		return &SubmitReview{}, true
	case ResubmitKind:
		return &Resubmit{}, true
	case PublishKind:
		return &Publish{}, true
	case ArchiveKind:
		return &Archive{}, true
	}
	return nil, false
}
