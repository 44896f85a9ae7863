package workflow

import (
	"github.com/tenantcms/tenantcms/internal/content"
	"github.com/tenantcms/tenantcms/internal/identity"
)

var categoryLeadStatuses = []content.Status{
	content.StatusSaved,
	content.StatusChecking,
	content.StatusChecked,
}

// VisibleStatuses lists the statuses offered to actor in list filters.
// Category leads never get the published state. This only shapes filter
// options; authorization stays with the policy engine.
func VisibleStatuses(actor identity.Actor) []StatusInfo {
	if !actor.Has(identity.RoleCategoryLead) {
		return Catalog()
	}
	out := make([]StatusInfo, 0, len(categoryLeadStatuses))
	for _, code := range categoryLeadStatuses {
		info, _ := Lookup(code)
		out = append(out, info)
	}
	return out
}
