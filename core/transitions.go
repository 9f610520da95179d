package core

import (
	"context"
	"strings"
	"time"
)

// A transition is one row of the transition table.
type transition struct {
	kind ActionKind
	from Status

	who   string // for error messages
	allow func(a *Article, actor Actor) bool

	// check evaluates the preconditions. It may read from repositories but must not write.
	check  func(ctx context.Context, e *Engine, a *Article, actor Actor, action Action) error
	next   func(action Action) Status
	mutate func(a *Article, actor Actor, action Action, now time.Time)

	event func(action Action) EventType
	mail  Template // empty if no notification is sent
	data  func(data map[string]interface{}, actor Actor, action Action)
}

func to(s Status) func(Action) Status {
	return func(Action) Status { return s }
}

func emit(t EventType) func(Action) EventType {
	return func(Action) EventType { return t }
}

func isAuthor(a *Article, actor Actor) bool {
	return a.HasAuthor(actor.ID)
}

func isAuthorOrEditor(a *Article, actor Actor) bool {
	return a.HasAuthor(actor.ID) || actor.IsEditor()
}

func hasRole(roles ...Role) func(*Article, Actor) bool {
	return func(_ *Article, actor Actor) bool {
		return actor.Roles.Any(roles...)
	}
}

func isResearcher(a *Article, actor Actor) bool {
	return actor.Is(Researcher) && a.CurrentResearcherID != "" && a.CurrentResearcherID == actor.ID
}

func isReviewer(a *Article, actor Actor) bool {
	return actor.Roles.Any(Reviewer, Editor) && a.CurrentReviewerID != "" && a.CurrentReviewerID == actor.ID
}

func requireNotes(notes string) error {
	if strings.TrimSpace(notes) == "" {
		return precondition(EmptyNotes, "notes are required")
	}
	return validateText("notes", notes, 1, MaxNotesLength)
}

// occupied rejects starting a phase which another worker has started already. Its rows exist so that a second start fails with
// AlreadyAssigned instead of InvalidTransition.
func occupied(assignee func(a *Article) string) func(context.Context, *Engine, *Article, Actor, Action) error {
	return func(_ context.Context, _ *Engine, a *Article, _ Actor, _ Action) error {
		return precondition(AlreadyAssigned, "article is assigned to %s", assignee(a))
	}
}

func researcherOf(a *Article) string { return a.CurrentResearcherID }
func reviewerOf(a *Article) string   { return a.CurrentReviewerID }

var table = []*transition{
	{
		kind:  SubmitKind,
		from:  Draft,
		who:   "an author of the article",
		allow: isAuthor,
		check: func(_ context.Context, _ *Engine, a *Article, _ Actor, action Action) error {
			if err := validateText("title", a.Title, 1, MaxTitleLength); err != nil {
				return err
			}
			if err := validateText("content", a.Content, 1, MaxContentLength); err != nil {
				return err
			}
			if notes := action.(Submit).Notes; notes != "" {
				return validateText("notes", notes, 1, MaxNotesLength)
			}
			return nil
		},
		next: to(ResearchRequired),
		mutate: func(a *Article, _ Actor, action Action, _ time.Time) {
			a.SubmissionNotes = strings.TrimSpace(action.(Submit).Notes)
		},
		event: emit(ArticleSubmitted),
		mail:  ArticleSubmittedMail,
		data: func(data map[string]interface{}, actor Actor, _ Action) {
			data["submittedBy"] = actor.ID
		},
	},
	{
		kind:  StartResearchKind,
		from:  ResearchRequired,
		who:   "the researcher role",
		allow: hasRole(Researcher),
		check: func(_ context.Context, _ *Engine, a *Article, _ Actor, _ Action) error {
			if a.CurrentResearcherID != "" {
				return precondition(AlreadyAssigned, "article is assigned to %s", a.CurrentResearcherID)
			}
			return nil
		},
		next: to(ResearchInProgress),
		mutate: func(a *Article, actor Actor, _ Action, _ time.Time) {
			a.CurrentResearcherID = actor.ID
		},
		event: emit(ResearchStarted),
		mail:  ResearchStartedMail,
		data: func(data map[string]interface{}, actor Actor, _ Action) {
			data["researcherId"] = actor.ID
		},
	},
	{
		kind:  StartResearchKind,
		from:  ResearchInProgress,
		who:   "the researcher role",
		allow: hasRole(Researcher),
		check: occupied(researcherOf),
		next:  to(ResearchInProgress),
		event: emit(ResearchStarted),
	},
	{
		kind:  CompleteResearchKind,
		from:  ResearchInProgress,
		who:   "the assigned researcher",
		allow: isResearcher,
		check: func(ctx context.Context, e *Engine, a *Article, _ Actor, action Action) error {
			var cr = action.(CompleteResearch)
			if err := ValidateReferences(cr.ReferenceIDs, 0); err != nil {
				return err
			}
			var merged = union(a.ReferenceIDs, cr.ReferenceIDs)
			if err := ValidateReferences(merged, e.MinReferences); err != nil {
				return err
			}
			if err := requireNotes(cr.Notes); err != nil {
				return err
			}
			return e.call(ctx, func(ctx context.Context) error {
				return resolveReferences(ctx, e.References, merged, false)
			})
		},
		next: to(ReviewRequired),
		mutate: func(a *Article, _ Actor, action Action, now time.Time) {
			var cr = action.(CompleteResearch)
			a.ReferenceIDs = union(a.ReferenceIDs, cr.ReferenceIDs)
			a.ResearchNotes = strings.TrimSpace(cr.Notes)
			a.CurrentResearcherID = ""
			a.ResearchCompletedAt = &now
		},
		event: emit(ResearchCompleted),
		mail:  ResearchCompletedMail,
		data: func(data map[string]interface{}, actor Actor, _ Action) {
			data["researcherId"] = actor.ID
		},
	},
	{
		kind:  StartReviewKind,
		from:  ReviewRequired,
		who:   "the reviewer or editor role",
		allow: hasRole(Reviewer, Editor),
		check: func(_ context.Context, _ *Engine, a *Article, _ Actor, _ Action) error {
			if a.CurrentReviewerID != "" {
				return precondition(AlreadyAssigned, "article is assigned to %s", a.CurrentReviewerID)
			}
			return nil
		},
		next: to(ReviewInProgress),
		mutate: func(a *Article, actor Actor, _ Action, _ time.Time) {
			a.CurrentReviewerID = actor.ID
		},
		event: emit(ReviewStarted),
	},
	{
		kind:  StartReviewKind,
		from:  ReviewInProgress,
		who:   "the reviewer or editor role",
		allow: hasRole(Reviewer, Editor),
		check: occupied(reviewerOf),
		next:  to(ReviewInProgress),
		event: emit(ReviewStarted),
	},
	{
		kind:  SubmitReviewKind,
		from:  ReviewInProgress,
		who:   "the assigned reviewer",
		allow: isReviewer,
		check: func(_ context.Context, _ *Engine, _ *Article, _ Actor, action Action) error {
			var sr = action.(SubmitReview)
			if !sr.Decision.Valid() {
				return invalid("decision must be one of %s, %s, %s", Approve, Revise, Reject)
			}
			return requireNotes(sr.Notes)
		},
		next: func(action Action) Status {
			switch action.(SubmitReview).Decision {
			case Approve:
				return Approved
			case Revise:
				return RevisionRequired
			default:
				return Archived
			}
		},
		mutate: func(a *Article, actor Actor, action Action, now time.Time) {
			var sr = action.(SubmitReview)
			a.ReviewNotes = strings.TrimSpace(sr.Notes)
			a.ReviewedAt = &now
			a.CurrentReviewerID = ""
			if sr.Decision == Approve && a.ApprovedAt == nil {
				a.ApprovedBy = actor.ID
				a.ApprovedAt = &now
			}
		},
		event: func(action Action) EventType {
			switch action.(SubmitReview).Decision {
			case Approve:
				return ArticleApproved
			case Revise:
				return RevisionRequested
			default:
				return ArticleRejected
			}
		},
		mail: ArticleReviewedMail,
		data: func(data map[string]interface{}, actor Actor, action Action) {
			var sr = action.(SubmitReview)
			data["reviewerId"] = actor.ID
			data["decision"] = string(sr.Decision)
			data["comments"] = sr.Notes
		},
	},
	{
		kind:  ResubmitKind,
		from:  RevisionRequired,
		who:   "an author of the article or an editor",
		allow: isAuthorOrEditor,
		check: func(_ context.Context, e *Engine, a *Article, _ Actor, action Action) error {
			var rs = action.(Resubmit)
			if err := rs.Changes.validate(); err != nil {
				return err
			}
			var edited = a.ReviewedAt == nil || a.UpdatedAt.After(*a.ReviewedAt) || rs.Changes.changes(a)
			if !edited {
				return precondition(ContentUnchanged, "the article has not been edited since the review")
			}
			if rs.Notes != "" {
				if err := validateText("notes", rs.Notes, 1, MaxNotesLength); err != nil {
					return err
				}
			}
			if !rs.Research {
				return ValidateReferences(a.ReferenceIDs, e.MinReferences)
			}
			return nil
		},
		next: func(action Action) Status {
			if action.(Resubmit).Research {
				return ResearchRequired
			}
			return ReviewRequired
		},
		mutate: func(a *Article, _ Actor, action Action, _ time.Time) {
			var rs = action.(Resubmit)
			rs.Changes.apply(a)
			if notes := strings.TrimSpace(rs.Notes); notes != "" {
				a.SubmissionNotes = notes
			}
		},
		event: emit(ArticleResubmitted),
		mail:  ArticleSubmittedMail,
		data: func(data map[string]interface{}, actor Actor, action Action) {
			data["submittedBy"] = actor.ID
			data["resubmitted"] = true
			data["research"] = action.(Resubmit).Research
		},
	},
	{
		kind:  PublishKind,
		from:  Approved,
		who:   "the editor role",
		allow: hasRole(Editor),
		check: func(ctx context.Context, e *Engine, a *Article, _ Actor, _ Action) error {
			if err := ValidateReferences(a.ReferenceIDs, e.MinReferences); err != nil {
				return err
			}
			return e.call(ctx, func(ctx context.Context) error {
				return resolveReferences(ctx, e.References, a.ReferenceIDs, true)
			})
		},
		next: to(Published),
		mutate: func(a *Article, _ Actor, _ Action, now time.Time) {
			if a.PublishedAt == nil {
				a.PublishedAt = &now
			}
		},
		event: emit(ArticlePublished),
	},
}

func init() {
	// an editor can archive from every status except the terminal ones
	for _, from := range AllStatuses {
		if from.Terminal() {
			continue
		}
		table = append(table, &transition{
			kind:  ArchiveKind,
			from:  from,
			who:   "the editor role",
			allow: hasRole(Editor),
			check: func(_ context.Context, _ *Engine, _ *Article, _ Actor, action Action) error {
				if notes := action.(Archive).Notes; notes != "" {
					return validateText("notes", notes, 1, MaxNotesLength)
				}
				return nil
			},
			next: to(Archived),
			mutate: func(a *Article, _ Actor, _ Action, _ time.Time) {
				a.CurrentResearcherID = ""
				a.CurrentReviewerID = ""
			},
			event: emit(ArticleArchived),
			mail:  ArticleArchivedMail,
			data: func(data map[string]interface{}, actor Actor, _ Action) {
				data["archivedBy"] = actor.ID
			},
		})
	}

	index = make(map[tableKey]*transition, len(table))
	for _, t := range table {
		index[tableKey{t.kind, t.from}] = t
	}
}

type tableKey struct {
	kind ActionKind
	from Status
}

var index map[tableKey]*transition

func lookup(kind ActionKind, from Status) *transition {
	return index[tableKey{kind, from}]
}

// Edge is a (kind, from) pair of the transition table.
type Edge struct {
	Kind ActionKind
	From Status
}

// Edges returns all rows of the transition table, including the rows which only exist to report AlreadyAssigned.
func Edges() []Edge {
	var edges = make([]Edge, len(table))
	for i, t := range table {
		edges[i] = Edge{t.kind, t.from}
	}
	return edges
}

// AvailableActions returns the actions whose role requirement the actor meets in the current status of the article.
// Preconditions are not evaluated.
func AvailableActions(a *Article, actor Actor) []ActionKind {
	var result = []ActionKind{}
	for _, kind := range AllActionKinds {
		t := lookup(kind, a.Status)
		if t == nil || !t.allow(a, actor) {
			continue
		}
		if t.next(zeroAction(kind)) == a.Status {
			continue // occupied phase
		}
		result = append(result, kind)
	}
	return result
}

func zeroAction(kind ActionKind) Action {
	switch kind {
	case SubmitKind:
		return Submit{}
	case StartResearchKind:
		return StartResearch{}
	case CompleteResearchKind:
		return CompleteResearch{}
	case StartReviewKind:
		return StartReview{}
	case SubmitReviewKind:
		return SubmitReview{Decision: Approve}
	case ResubmitKind:
		return Resubmit{}
	case PublishKind:
		return Publish{}
	case ArchiveKind:
		return Archive{}
	}
	return nil
}
