package client

import (
	"fmt"
	"strings"
)

// Action is what one line of user input translates to.
type Action int

const (
	// ActionSend sends the line as a chat message.
	ActionSend Action = iota
	// ActionQuit ends the session.
	ActionQuit
	// ActionListRooms requests the room table.
	ActionListRooms
	// ActionListCommands requests the command catalogue.
	ActionListCommands
	// ActionCurrentRoom asks which room the session is in.
	ActionCurrentRoom
	// ActionJoin joins the room named in Arg.
	ActionJoin
	// ActionLeave leaves the current room.
	ActionLeave
)

// Command is the parsed form of one input line.
type Command struct {
	Action Action
	Arg    string
}

// ParseInput translates one line of user input. Lines starting with "/"
// are commands; everything else is chat. Empty lines are an error so the
// caller can skip them.
func ParseInput(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, fmt.Errorf("empty input")
	}

	if !strings.HasPrefix(line, "/") {
		return Command{Action: ActionSend, Arg: line}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return Command{Action: ActionQuit}, nil
	case "/rooms":
		return Command{Action: ActionListRooms}, nil
	case "/cmds", "/help":
		return Command{Action: ActionListCommands}, nil
	case "/room":
		return Command{Action: ActionCurrentRoom}, nil
	case "/join":
		if len(fields) < 2 {
			return Command{}, fmt.Errorf("usage: /join <room name>")
		}
		return Command{Action: ActionJoin, Arg: strings.Join(fields[1:], " ")}, nil
	case "/leave":
		return Command{Action: ActionLeave}, nil
	default:
		return Command{}, fmt.Errorf("unknown command %s, try /cmds", fields[0])
	}
}

// Dispatch executes a parsed command against the controller.
func Dispatch(c *Controller, cmd Command) error {
	switch cmd.Action {
	case ActionSend:
		return c.SendChat(cmd.Arg)
	case ActionQuit:
		return c.Quit()
	case ActionListRooms:
		return c.ListRooms()
	case ActionListCommands:
		return c.ListCommands()
	case ActionCurrentRoom:
		return c.CurrentRoom()
	case ActionJoin:
		return c.JoinRoom(cmd.Arg)
	case ActionLeave:
		return c.LeaveRoom()
	default:
		return fmt.Errorf("unhandled action %d", cmd.Action)
	}
}
