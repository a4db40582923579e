package event

// ZoneReset is emitted after a zone's command list has been replayed.
type ZoneReset struct {
	Zone int
	Vnum int32
}

// CommandDisabled is emitted once when a zone command is switched off.
type CommandDisabled struct {
	Zone   int
	Line   int
	Reason string
}

// MailDelivered is emitted after a message is stored for a recipient.
type MailDelivered struct {
	To   int64
	From int64
}

// RentLoaded is emitted when a player's object file has been read at login.
type RentLoaded struct {
	Name    string
	Outcome int
}
