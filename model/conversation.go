package model

// Participant is one member of a conversation with the write/manage flags the
// gateway enforces.
type Participant struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	CanWrite  bool   `json:"canWrite"`
	CanManage bool   `json:"canManage"`
}

type Conversation struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Participants []Participant `json:"participants"`
	CreatedAt    int64         `json:"createdAt"`
}

// Participant looks up a member by user id.
func (c *Conversation) Participant(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}
