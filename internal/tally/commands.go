package tally

import "strings"

// UnknownCommand is the label used for errors raised before a command could be identified.
const UnknownCommand = "Unknown"

// Commands owns the invocation and error tallies. It is passed to both the command
// framework (which notifies it) and the reporter (which snapshots it).
type Commands struct {
	Invoked *Store
	Errored *Store
}

// NewCommands returns a Commands with two empty stores.
func NewCommands() *Commands {
	return &Commands{Invoked: NewStore(), Errored: NewStore()}
}

// NotifyCommandInvoked records one invocation of name, or of UnknownCommand when name is blank.
func (c *Commands) NotifyCommandInvoked(name string) {
	c.Invoked.Increment(label(name))
}

// NotifyCommandErrored records one error for name, or for UnknownCommand when name is blank.
func (c *Commands) NotifyCommandErrored(name string) {
	c.Errored.Increment(label(name))
}

func label(name string) string {
	if strings.TrimSpace(name) == "" {
		return UnknownCommand
	}
	return name
}
