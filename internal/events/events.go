// Package events consumes gateway notifications and routes them into the
// verification state machine and the activity recorder. The transport
// delivers each notification on its own topic; payloads are plain JSON.
package events

// Topic suffixes under the configured prefix.
const (
	TopicMemberJoined      = "member-joined"
	TopicMemberLeft        = "member-left"
	TopicMessageSent       = "message-sent"
	TopicReactionAdded     = "reaction-added"
	TopicVoiceStateChanged = "voice-state-changed"
	TopicInteraction       = "interaction"
	TopicOutbound          = "outbound"
)

// InboundTopics returns the fully-qualified topics this service consumes.
func InboundTopics(prefix string) []string {
	suffixes := []string{
		TopicMemberJoined,
		TopicMemberLeft,
		TopicMessageSent,
		TopicReactionAdded,
		TopicVoiceStateChanged,
		TopicInteraction,
	}
	topics := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		topics = append(topics, prefix+"."+s)
	}
	return topics
}

// OutboundTopic returns the topic replies and prompts are produced to.
func OutboundTopic(prefix string) string {
	return prefix + "." + TopicOutbound
}

// memberPayload is shared by member-joined and member-left notifications.
type memberPayload struct {
	MemberID string `json:"member_id"`
	GroupID  string `json:"group_id"`
	IsBot    bool   `json:"is_bot"`
}

// trafficPayload is shared by message, reaction, and voice-state
// notifications; only the identity matters to the activity recorder.
type trafficPayload struct {
	MemberID string `json:"member_id"`
	GroupID  string `json:"group_id"`
	IsBot    bool   `json:"is_bot"`
}

// interactionPayload is a component interaction (button click). CustomID
// encodes the action: "verify:start" requests a challenge,
// "verify:answer:<n>" submits the choice n.
type interactionPayload struct {
	InteractionID string `json:"interaction_id"`
	MemberID      string `json:"member_id"`
	GroupID       string `json:"group_id"`
	CustomID      string `json:"custom_id"`
	IsBot         bool   `json:"is_bot"`
}
