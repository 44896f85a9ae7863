package workflow

import (
	"errors"
	"fmt"

	"github.com/tenantcms/tenantcms/internal/content"
)

// ErrInvalidStatus indicates a status code outside the catalog.
var ErrInvalidStatus = errors.New("workflow: invalid status")

// StatusInfo is a catalog entry.
type StatusInfo struct {
	ID   content.Status `json:"id"`
	Name string         `json:"name"`
}

var catalog = []StatusInfo{
	{ID: content.StatusRejected, Name: "Rejected"},
	{ID: content.StatusSaved, Name: "Saved"},
	{ID: content.StatusChecking, Name: "Checking"},
	{ID: content.StatusChecked, Name: "Checked"},
	{ID: content.StatusPublished, Name: "Published"},
}

// Catalog returns every known status in code order.
func Catalog() []StatusInfo {
	return append([]StatusInfo(nil), catalog...)
}

// Lookup returns the catalog entry for code.
func Lookup(code content.Status) (StatusInfo, bool) {
	for _, info := range catalog {
		if info.ID == code {
			return info, true
		}
	}
	return StatusInfo{}, false
}

// ParseStatus validates a raw code against the catalog.
func ParseStatus(raw int) (content.Status, error) {
	if _, ok := Lookup(content.Status(raw)); !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidStatus, raw)
	}
	return content.Status(raw), nil
}
