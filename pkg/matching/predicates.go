package matching

import (
	"strings"

	"github.com/harborpaws/resolve/pkg/models"
)

// EarlyExit is the verdict of a predicate that short-circuits scoring
type EarlyExit struct {
	Rule    string
	Outcome models.DecisionOutcome
	Reason  string
}

// Predicate inspects a signal set before any candidate work happens. A nil
// return means the predicate does not apply and evaluation continues with the
// next one. Predicates run in registration order.
type Predicate struct {
	Name  string
	Check func(signals *models.SignalSet) *EarlyExit
}

// organizationTokens flags names that describe institutions rather than
// people. A record bearing one never becomes a person.
var organizationTokens = []string{
	"shelter", "clinic", "hospital", "rescue", "society", "humane",
	"veterinary", "foundation", "sanctuary", "animal control",
	"inc", "llc", "corp", "dept", "department", "county", "city of",
}

// internalAccountTokens flags operational placeholder accounts that source
// systems use for bookkeeping
var internalAccountTokens = []string{
	"test account", "do not use", "unknown owner", "anonymous",
	"walk-in", "walk in", "counter sale",
}

// DefaultPredicates returns the standard early-exit chain in priority order
func DefaultPredicates() []Predicate {
	return []Predicate{
		{Name: "organizational_name", Check: rejectOrganizationalName},
		{Name: "internal_account", Check: rejectInternalAccount},
		{Name: "no_usable_identifier", Check: rejectUnusableSignals},
	}
}

func rejectOrganizationalName(signals *models.SignalSet) *EarlyExit {
	name := strings.ToLower(signals.BestName())
	if name == "" {
		return nil
	}
	for _, token := range organizationTokens {
		if containsToken(name, token) {
			return &EarlyExit{
				Rule:    "organizational_name",
				Outcome: models.OutcomeRejected,
				Reason:  "name matches organizational token " + token,
			}
		}
	}
	return nil
}

func rejectInternalAccount(signals *models.SignalSet) *EarlyExit {
	name := strings.ToLower(signals.BestName())
	if name == "" {
		return nil
	}
	for _, token := range internalAccountTokens {
		if strings.Contains(name, token) {
			return &EarlyExit{
				Rule:    "internal_account",
				Outcome: models.OutcomeRejected,
				Reason:  "name matches internal account token " + token,
			}
		}
	}
	return nil
}

func rejectUnusableSignals(signals *models.SignalSet) *EarlyExit {
	if !signals.HasUsableIdentifier() {
		return &EarlyExit{
			Rule:    "no_usable_identifier",
			Outcome: models.OutcomeRejected,
			Reason:  "no identifier strong enough to anchor a match",
		}
	}
	return nil
}

// containsToken matches whole words so "lincoln" does not trip on "inc"
func containsToken(name, token string) bool {
	if strings.Contains(token, " ") {
		return strings.Contains(name, token)
	}
	for _, word := range strings.Fields(name) {
		word = strings.Trim(word, ".,()")
		if word == token {
			return true
		}
	}
	return false
}
