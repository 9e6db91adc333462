package notifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"broker-backend/internal/application/ledger"
	"broker-backend/internal/domain"
)

// BuildMatchesMessage renders the plain-text body sent to a listing owner
// after a matching run.
func BuildMatchesMessage(listing *domain.Listing, matches []ledger.MatchView) string {
	if len(matches) == 0 {
		return "No matching listings found yet. We will keep looking for you."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d potential matches for %q:\n", len(matches), listing.Title)
	for i, m := range matches {
		if m.Counterpart == nil {
			continue
		}
		fmt.Fprintf(&b, "%d. %s (match %.0f%%)\n", i+1, m.Counterpart.Title, m.Score*100)
		if m.Counterpart.PriceRange != "" {
			fmt.Fprintf(&b, "   Price: %s\n", m.Counterpart.PriceRange)
		}
		if len(m.Counterpart.Tags) > 0 {
			tags := m.Counterpart.Tags
			if len(tags) > 3 {
				tags = tags[:3]
			}
			fmt.Fprintf(&b, "   Tags: %s\n", strings.Join(tags, ", "))
		}
	}
	b.WriteString("Reply with accept or reject for a match to proceed.")
	return b.String()
}

// BuildRecordedMessage confirms a listing was stored and matching started.
func BuildRecordedMessage(listing *domain.Listing) string {
	kind := "offer"
	if listing.Direction == domain.DirectionDemand {
		kind = "request"
	}
	return fmt.Sprintf("Your %s %q has been recorded. We are looking for matches and will notify you.", kind, listing.Title)
}

// BuildAcceptedMessage tells the owner the other side accepted and shares the
// counterpart's contact details.
func BuildAcceptedMessage(listing *domain.Listing, counterpart *domain.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Good news! The other side is interested in %q.\n", listing.Title)
	if counterpart != nil {
		fmt.Fprintf(&b, "Matched listing: %s\n", counterpart.Title)
		if contact := renderContact(counterpart.ContactInfo); contact != "" {
			fmt.Fprintf(&b, "Contact:\n%s", contact)
		}
	}
	b.WriteString("Please reach out to them soon.")
	return b.String()
}

// renderContact formats the opaque contact payload; unknown keys are listed as-is.
func renderContact(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var contact map[string]interface{}
	if err := json.Unmarshal(raw, &contact); err != nil {
		return ""
	}
	var b strings.Builder
	for _, key := range []string{"phone", "wechat", "email"} {
		if v, ok := contact[key].(string); ok && v != "" {
			fmt.Fprintf(&b, "  %s: %s\n", key, v)
		}
	}
	return b.String()
}
