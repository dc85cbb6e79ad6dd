package livesource

// Identity describes the credential the client authenticated with.
type Identity struct {
	Team   string
	TeamID string
	User   string
	UserID string
	BotID  string
}

// Channel is a conversation visible to the credential.
type Channel struct {
	ID         string
	Name       string
	IsPrivate  bool
	IsMember   bool
	NumMembers int
}

// Message is a raw history entry as returned by the source.
// User is an ID, not a display name; Text still carries markup.
type Message struct {
	User     string
	Text     string
	TS       string
	ThreadTS string
	SubType  string
}

// SearchMatch is one hit from the source's own search.
type SearchMatch struct {
	Text      string
	User      string
	Channel   string
	Timestamp string
	Permalink string
}
