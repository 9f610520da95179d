package core

// Status is the position of an article in the workflow.
type Status string

const (
	Draft              Status = "DRAFT"
	ResearchRequired   Status = "RESEARCH_REQUIRED"
	ResearchInProgress Status = "RESEARCH_IN_PROGRESS"
	ReviewRequired     Status = "REVIEW_REQUIRED"
	ReviewInProgress   Status = "REVIEW_IN_PROGRESS"
	RevisionRequired   Status = "REVISION_REQUIRED"
	Approved           Status = "APPROVED"
	Published          Status = "PUBLISHED"
	Archived           Status = "ARCHIVED"
)

// AllStatuses lists every status in workflow order.
var AllStatuses = []Status{
	Draft,
	ResearchRequired,
	ResearchInProgress,
	ReviewRequired,
	ReviewInProgress,
	RevisionRequired,
	Approved,
	Published,
	Archived,
}

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	for _, status := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Editable returns whether authors may change the content in this status. Editors may change it in every status except the terminal ones.
func (s Status) Editable() bool {
	return s == Draft || s == RevisionRequired
}

// Terminal returns true for PUBLISHED and ARCHIVED.
func (s Status) Terminal() bool {
	return s == Published || s == Archived
}
