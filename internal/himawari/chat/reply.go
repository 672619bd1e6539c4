// Package chat defines the reply shape every conversational component
// produces: a message, optional quick-reply buttons, and whether the
// client should keep the free-text box open.
package chat

// Button is a quick-reply option. Value is what arrives as the next user
// message when the button is pressed.
type Button struct {
	Text  string
	Value string
}

// Reply is one assistant turn.
type Reply struct {
	Message       string
	Buttons       []Button
	ShowTextInput bool
}

// Text builds a plain reply with the text box open.
func Text(msg string) Reply {
	return Reply{Message: msg, ShowTextInput: true}
}
