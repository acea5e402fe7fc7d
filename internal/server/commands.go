package server

import (
	"strings"
)

// Replies sent back to the issuing session only.
const (
	replyJoined         = "joined"
	replyRoomRequired   = "!!! room name is required"
	replyNameRequired   = "!!! name is required"
	replyUnknownCommand = "!!! unknown command: "
)

type commandKind int

const (
	commandChat commandKind = iota
	commandList
	commandJoin
	commandName
	commandUnknown
)

// command is one parsed inbound text frame.
type command struct {
	kind commandKind
	// arg is the chat text, the room, the nickname or the unknown command word.
	arg string
}

// parseCommand interprets a trimmed text frame. Lines starting with '/' are
// commands; anything else is chat.
func parseCommand(text string) command {
	if !strings.HasPrefix(text, "/") {
		return command{kind: commandChat, arg: text}
	}

	word, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	switch word {
	case "/list":
		return command{kind: commandList}
	case "/join":
		return command{kind: commandJoin, arg: rest}
	case "/name":
		return command{kind: commandName, arg: rest}
	default:
		return command{kind: commandUnknown, arg: word}
	}
}

// handleText routes one inbound frame: commands act on the hub or on the
// session itself, chat goes to every room the session is in.
func (c *Client) handleText(raw string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return
	}

	cmd := parseCommand(text)
	switch cmd.kind {
	case commandList:
		for _, room := range c.hub.ListRooms() {
			c.reply(room)
		}

	case commandJoin:
		if cmd.arg == "" {
			c.reply(replyRoomRequired)
			return
		}
		c.hub.Join(c.id, cmd.arg)
		c.reply(replyJoined)

	case commandName:
		if cmd.arg == "" {
			c.reply(replyNameRequired)
			return
		}
		c.name = cmd.arg

	case commandUnknown:
		c.reply(replyUnknownCommand + cmd.arg)

	default:
		msg := cmd.arg
		if c.name != "" {
			msg = c.name + ": " + msg
		}
		for _, room := range c.hub.RoomsOf(c.id) {
			c.hub.Broadcast(c.id, room, msg)
		}
	}
}

func (c *Client) reply(text string) {
	if err := c.Deliver(text); err != nil {
		c.logger.V(1).Info("reply dropped", "reason", err.Error())
	}
}
