package shared

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// NotificationKind tells the platform bridge how to deliver a notification
type NotificationKind string

const (
	// NotificationReply answers the comment or message identified by EventID
	NotificationReply NotificationKind = "REPLY"
	// NotificationDirect opens a new private message to Recipient
	NotificationDirect NotificationKind = "DIRECT"
)
