/*
Package core contains the editorial workflow: articles, references, roles and the engine which moves articles through their states.

Workflow

An article is drafted by its authors, researched by exactly one researcher, reviewed by exactly one reviewer or editor, and finally published by an editor.

  DRAFT -> RESEARCH_REQUIRED -> RESEARCH_IN_PROGRESS -> REVIEW_REQUIRED -> REVIEW_IN_PROGRESS -> APPROVED -> PUBLISHED
                                                                                             \-> REVISION_REQUIRED -> RESEARCH_REQUIRED or REVIEW_REQUIRED
                                                                                             \-> ARCHIVED (rejected)

An editor can archive every article which is neither published nor archived.

The engine does not keep any article state between calls. Each transition reads the article, checks the transition table, and writes the result with a conditional update on the status it has read. Concurrent transitions on the same article are serialized by the storage, not by locks in this package.

Roles

Roles are modeled as groups. A user holds the EDITOR role if and only if they are a member of the group "editor". Group names are matched case-insensitively.
*/
package core
