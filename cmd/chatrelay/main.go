package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/term"

	"github.com/codefionn/chatrelay/internal/client"
	"github.com/codefionn/chatrelay/internal/config"
	"github.com/codefionn/chatrelay/internal/logger"
	"github.com/codefionn/chatrelay/internal/securemem"
	"github.com/codefionn/chatrelay/internal/tlsconf"
)

const maxPasswordAttempts = 3

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// consoleListener renders server events on stdout.
type consoleListener struct {
	done     chan struct{}
	doneOnce sync.Once
}

func newConsoleListener() *consoleListener {
	return &consoleListener{done: make(chan struct{})}
}

func (l *consoleListener) OnChatMessage(roomName, sender, content, timestamp string) {
	fmt.Printf("[%s] %s: %s\n", roomName, sender, content)
}

func (l *consoleListener) OnUserJoined(roomName, username string) {
	fmt.Printf("* %s joined %s\n", username, roomName)
}

func (l *consoleListener) OnUserLeft(roomName, username string) {
	fmt.Printf("* %s left %s\n", username, roomName)
}

func (l *consoleListener) OnRoomJoined(roomName string, isAIRoom bool) {
	if isAIRoom {
		fmt.Printf("* joined AI room %q\n", roomName)
		return
	}
	fmt.Printf("* joined room %q\n", roomName)
}

func (l *consoleListener) OnRoomLeft(roomName string) {
	fmt.Printf("* left room %q\n", roomName)
}

func (l *consoleListener) OnRoomList(rooms []string) {
	fmt.Println("Rooms:")
	for _, r := range rooms {
		fmt.Printf("  %s\n", r)
	}
}

func (l *consoleListener) OnCurrentRoom(roomName string) {
	if roomName == "" {
		fmt.Println("* not in a room")
		return
	}
	fmt.Printf("* current room: %q\n", roomName)
}

func (l *consoleListener) OnCommands(commands map[string]string) {
	fmt.Println("Commands:")
	for name, desc := range commands {
		fmt.Printf("  %-14s %s\n", name, desc)
	}
}

func (l *consoleListener) OnWelcome(text string) {
	fmt.Println(text)
}

func (l *consoleListener) OnServerError(text string) {
	fmt.Printf("! %s\n", text)
}

func (l *consoleListener) OnReconnecting(attempt, maxAttempts int) {
	fmt.Printf("* connection lost, reconnecting (%d/%d)...\n", attempt, maxAttempts)
}

func (l *consoleListener) OnDisconnected(err error) {
	fmt.Printf("* disconnected: %v\n", err)
	l.doneOnce.Do(func() { close(l.done) })
}

func run() (err error) {
	configPath := flag.String("config", "", "path to the config file")
	serverAddr := flag.String("server", "", "server address override, e.g. localhost:8443")
	username := flag.String("user", "", "username (prompted when empty)")
	register := flag.Bool("register", false, "register a new account instead of logging in")
	caFile := flag.String("ca", "", "CA certificate file for server verification")
	insecure := flag.Bool("insecure", false, "skip server certificate verification")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *serverAddr != "" {
		cfg.ServerAddr = *serverAddr
	}
	if *caFile != "" {
		cfg.CAFile = *caFile
	}
	if *insecure {
		cfg.InsecureSkipVerify = true
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	tlsCfg, err := tlsconf.Client(cfg.CAFile, cfg.InsecureSkipVerify)
	if err != nil {
		return err
	}

	listener := newConsoleListener()
	ctrl := client.NewController(client.DefaultConfig(cfg.ServerAddr, tlsCfg), listener)
	defer ctrl.Close()

	if err := ctrl.Connect(); err != nil {
		return err
	}

	if err := authenticate(ctrl, *username, *register); err != nil {
		return err
	}

	fmt.Println("Type /cmds for available commands.")

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			cmd, err := client.ParseInput(scanner.Text())
			if err != nil {
				if err.Error() != "empty input" {
					fmt.Printf("! %v\n", err)
				}
				continue
			}
			if err := client.Dispatch(ctrl, cmd); err != nil {
				fmt.Printf("! %v\n", err)
			}
			if cmd.Action == client.ActionQuit {
				return
			}
		}
	}()

	select {
	case <-inputDone:
	case <-listener.done:
	}
	return nil
}

// authenticate prompts for credentials and drives login or registration.
func authenticate(ctrl *client.Controller, username string, register bool) error {
	reader := bufio.NewReader(os.Stdin)

	if username == "" {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return errors.New("username is required")
	}

	for attempt := 1; attempt <= maxPasswordAttempts; attempt++ {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		password.Reveal(func(plaintext string) {
			if register {
				err = ctrl.Register(username, plaintext)
			} else {
				err = ctrl.Login(username, plaintext)
			}
		})
		password.Destroy()
		if err == nil {
			return nil
		}

		fmt.Fprintf(os.Stderr, "%v\n", err)
		if attempt == maxPasswordAttempts {
			return errors.New("too many failed attempts")
		}

		// A rejected handshake closes the connection server-side.
		if connErr := ctrl.Connect(); connErr != nil {
			return connErr
		}
	}
	return nil
}

// readPassword reads a password without echo and seals it into locked
// memory right away.
func readPassword(prompt string) (*securemem.Secret, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		data, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return nil, err
		}
		return securemem.SealBytes(data), nil
	}

	// Non-interactive input (tests, pipes) falls back to a plain line read.
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	return securemem.NewSecret(strings.TrimSpace(line)), nil
}
