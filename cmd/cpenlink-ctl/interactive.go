package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/cpenlink/cpenlink-go/pkg/log"
	"github.com/cpenlink/cpenlink-go/pkg/session"
	"github.com/cpenlink/cpenlink-go/pkg/status"
)

// interactive runs the command loop against the session.
type interactive struct {
	sess *session.Session
	rl   *readline.Instance
}

func newInteractive(sess *session.Session) (*interactive, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "cpen> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &interactive{sess: sess, rl: rl}, nil
}

// Run starts the interactive command loop.
func (i *interactive) Run(ctx context.Context, cancel context.CancelFunc) {
	defer i.rl.Close()

	i.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := i.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(i.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			i.printHelp()

		case "connect", "c":
			i.cmdConnect(ctx)

		case "disconnect", "d":
			i.sess.Disconnect()
			fmt.Println("Disconnected")

		case "totp", "t", "code":
			i.cmdTotp(ctx)

		case "id":
			i.cmdID(ctx)

		case "status", "s":
			i.cmdStatus()

		case "dump":
			i.cmdDump(args)

		case "quit", "exit", "q":
			fmt.Println("Exiting...")
			cancel()
			return

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (i *interactive) printHelp() {
	fmt.Println(`
Cpen Session Commands:
  connect       - Discover and connect to the first Cpen device
  disconnect    - Close the connection
  totp          - Fetch (or reuse) the current one-time code
  id            - Fetch the device identity
  status        - Show session state
  dump <file>   - Dump a protocol capture file
  quit          - Exit`)
}

func (i *interactive) cmdConnect(ctx context.Context) {
	if err := i.sess.Connect(ctx); err != nil {
		i.printErr(err)
		i.sess.AcknowledgeError()
		return
	}
	device := i.sess.Device()
	fmt.Printf("Connected to %s (%s)\n", device.Name, device.Address)
}

func (i *interactive) cmdTotp(ctx context.Context) {
	value, err := i.sess.GetValue(ctx)
	if err != nil {
		i.printErr(err)
		return
	}
	fmt.Printf("Code: %s\n", value)
}

func (i *interactive) cmdID(ctx context.Context) {
	id, err := i.sess.GetID(ctx)
	if err != nil {
		i.printErr(err)
		return
	}
	fmt.Printf("Device ID: %s\n", id)
}

func (i *interactive) cmdStatus() {
	fmt.Printf("State: %s\n", i.sess.State())
	if device := i.sess.Device(); device.Address != "" {
		fmt.Printf("Device: %s (%s)\n", device.Name, device.Address)
	}
	if err := i.sess.LastError(); err != nil {
		fmt.Printf("Last error: %v\n", err)
	}
}

func (i *interactive) cmdDump(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: dump <file>")
		return
	}

	reader, err := log.NewReader(args[0])
	if err != nil {
		fmt.Printf("Cannot open %s: %v\n", args[0], err)
		return
	}
	defer reader.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Printf("Read error after %d events: %v\n", count, err)
			return
		}
		printEvent(event)
		count++
	}
	fmt.Printf("%d events\n", count)
}

func printEvent(e log.Event) {
	ts := e.Timestamp.Format("15:04:05.000")
	switch {
	case e.Command != nil:
		if e.Command.TimedOut {
			fmt.Printf("%s  CMD  %-24s timeout\n", ts, e.Command.Command)
			return
		}
		fmt.Printf("%s  CMD  %-24s -> %s (%s)\n", ts, e.Command.Command, e.Command.Response, e.Command.RTT)
	case e.Push != nil:
		fmt.Printf("%s  PUSH %s\n", ts, e.Push.Payload)
	case e.StateChange != nil:
		fmt.Printf("%s  STATE %s -> %s %s\n", ts, e.StateChange.OldState, e.StateChange.NewState, e.StateChange.Reason)
	case e.Error != nil:
		fmt.Printf("%s  ERR  [%s] %s\n", ts, e.Error.Code, e.Error.Message)
	default:
		fmt.Printf("%s  %s\n", ts, e.Category)
	}
}

// printErr shows the structured code so the user can tell a missing
// adapter from a disabled one or a silent device.
func (i *interactive) printErr(err error) {
	code := status.CodeOf(err)
	switch code {
	case status.CodeHardwareUnavailable:
		fmt.Println("No Bluetooth adapter available")
	case status.CodeHardwareDisabled:
		fmt.Println("Bluetooth is turned off")
	case status.CodeDeviceNotFound:
		fmt.Println("No Cpen device found nearby")
	case status.CodeCommandTimeout:
		fmt.Println("Device did not answer in time - try again")
	default:
		fmt.Printf("Error [%s]: %v\n", code, err)
	}
}
