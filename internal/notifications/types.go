package notifications

// Payload is a generic user-facing notification payload.
type Payload struct {
	Title   string
	Content string
}

// Sender sends balloon notifications using a platform-specific backend.
type Sender interface {
	Send(payload Payload)
}

// Dialogs shows modal messages that need the user's attention.
type Dialogs interface {
	ShowError(title, message string)
	ShowInfo(title, message string)
}
