package domain

import "time"

// ConnID identifies one live transport session. A reconnect gets a new one.
type ConnID string

// Member represents a connection's presence meta in one room.
// No transport or lifecycle logic here.
type Member struct {
	ConnID   ConnID
	Name     string
	Role     string
	JoinedAt time.Time
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(id ConnID, name, role string, joinedAt time.Time) Member {
	return Member{ConnID: id, Name: name, Role: role, JoinedAt: joinedAt}
}

// MemberView is the users-update entry sent over the wire. Role travels as "type".
type MemberView struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	JoinedAt time.Time `json:"joinedAt"`
}

func (m Member) View() MemberView {
	return MemberView{Name: m.Name, Type: m.Role, JoinedAt: m.JoinedAt.UTC()}
}

func Views(members []Member) []MemberView {
	out := make([]MemberView, 0, len(members))
	for _, m := range members {
		out = append(out, m.View())
	}
	return out
}
