package core

// Event is the name carried in every envelope.
type Event string

// Inbound.
const (
	EventJoin            Event = "join"
	EventLeave           Event = "leave"
	EventOffer           Event = "offer"
	EventAnswer          Event = "answer"
	EventICECandidate    Event = "ice-candidate"
	EventRequestNewOffer Event = "request-new-offer"
)

// Outbound.
const (
	EventConnected     Event = "connected"
	EventJoinedSuccess Event = "joined-success"
	EventUserJoined    Event = "user-joined"
	EventUserLeft      Event = "user-left"
	EventUsersUpdate   Event = "users-update"
	EventRecreateOffer Event = "recreate-offer"
	EventError         Event = "error"
)
