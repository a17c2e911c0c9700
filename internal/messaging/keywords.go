package messaging

import "strings"

// Keywords recognized in inbound SMS bodies.
const (
	KeywordCancel  = "CANCEL"
	KeywordConfirm = "CONFIRM"
	KeywordNone    = ""
)

// DetectKeyword scans an SMS body for appointment keywords. Matching is
// case-insensitive and substring-based, so "Please CANCEL my appt" counts.
// When a body contains both keywords ("cancel, don't confirm"), CANCEL wins:
// acting on a cancellation the patient did not want is recoverable with a
// phone call, silently keeping a booking they tried to cancel is not.
func DetectKeyword(body string) string {
	upper := strings.ToUpper(body)
	if strings.Contains(upper, KeywordCancel) {
		return KeywordCancel
	}
	if strings.Contains(upper, KeywordConfirm) {
		return KeywordConfirm
	}
	return KeywordNone
}
