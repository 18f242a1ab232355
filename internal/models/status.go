package models

type ApplicationStatus string

const (
	StatusInProgress  ApplicationStatus = "in_progress"
	StatusUnderReview ApplicationStatus = "under_review"
	StatusAccepted    ApplicationStatus = "accepted"
	StatusDeclined    ApplicationStatus = "declined"
	StatusPaid        ApplicationStatus = "paid"
)

func ParseStatus(s string) (ApplicationStatus, bool) {
	switch st := ApplicationStatus(s); st {
	case StatusInProgress, StatusUnderReview, StatusAccepted, StatusDeclined, StatusPaid:
		return st, true
	}
	return "", false
}

// IsTerminal reports whether the review has concluded. Votes are never accepted
// in a terminal status.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusDeclined || s == StatusPaid
}

// PostAcceptance reports whether sections hidden before acceptance are unlocked.
func (s ApplicationStatus) PostAcceptance() bool {
	return s == StatusAccepted || s == StatusPaid
}
