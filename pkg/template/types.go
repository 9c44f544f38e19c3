// ABOUTME: Policy template data model
// ABOUTME: Named template files attached to a policy, stored via the blob collaborator

package template

import "time"

// Template is a named, typed template file owned by a policy
type Template struct {
	TemplateID string
	PolicyID   string
	Name       string
	FileRef    string // blob store reference
	FileName   string
	FileType   string
	CreatedAt  time.Time
}
