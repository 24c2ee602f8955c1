package events

// EventType defines the type of event
type EventType string

const (
	EventTypePersonCreated        EventType = "person.created"
	EventTypePersonMerged         EventType = "person.merged"
	EventTypeMergeUndone          EventType = "merge.undone"
	EventTypeDecisionRecorded     EventType = "decision.recorded"
	EventTypeHouseholdMemberAdded EventType = "household.member_added"
)
