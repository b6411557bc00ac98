package domain

type RoomName string

// RoomInfo is the listing view of a room.
type RoomInfo struct {
	Name        RoomName `json:"name"`
	MemberCount int      `json:"member_count"`
}
