// Command judger-repl is an interactive console for submitting one
// grading task at a time against a running judger TCP endpoint and
// watching its event stream print live, in the shape of fuzoj's own
// CLI REPL (system commands, shlex-tokenized commands, a one-line
// prompt) but built on chzyer/readline for history and line editing.
package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

type session struct {
	addr string
	rl   *readline.Instance
}

func main() {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "judger> ",
		HistoryFile:     historyPath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init readline failed: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	s := &session{addr: "127.0.0.1:8701", rl: rl}
	s.run()
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".judger_repl_history"
	}
	return home + "/.judger_repl_history"
}

func (s *session) run() {
	for {
		s.rl.SetPrompt(fmt.Sprintf("judger[%s]> ", s.addr))
		line, err := s.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if s.handleSystemCommand(line) {
			continue
		}
		if err := s.handleCommand(line); err != nil {
			s.printLine("error: %v", err)
		}
	}
}

func (s *session) handleSystemCommand(line string) bool {
	switch line {
	case "exit", "quit":
		os.Exit(0)
	case "help":
		s.printHelp()
		return true
	}
	if strings.HasPrefix(line, "connect ") {
		s.addr = strings.TrimSpace(strings.TrimPrefix(line, "connect "))
		s.printLine("target set to %s", s.addr)
		return true
	}
	return false
}

func (s *session) handleCommand(line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}
	switch tokens[0] {
	case "submit":
		if len(tokens) < 2 {
			return fmt.Errorf("usage: submit <task.json>")
		}
		return s.submit(tokens[1])
	default:
		return fmt.Errorf("unknown command: %s", tokens[0])
	}
}

// submit reads a task file, sends it over the length-prefixed TCP
// protocol, and prints every event as it streams back.
func (s *session) submit(path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read task file: %w", err)
	}
	var probe map[string]interface{}
	if err := json.Unmarshal(body, &probe); err != nil {
		return fmt.Errorf("task file is not valid JSON: %w", err)
	}

	conn, err := net.DialTimeout("tcp", s.addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.addr, err)
	}
	defer conn.Close()

	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	if _, err := conn.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("write task length: %w", err)
	}
	if _, err := conn.Write(body); err != nil {
		return fmt.Errorf("write task body: %w", err)
	}

	for {
		var frameLen [4]byte
		if _, err := io.ReadFull(conn, frameLen[:]); err != nil {
			break
		}
		size := binary.LittleEndian.Uint32(frameLen[:])
		frame := make([]byte, size)
		if _, err := io.ReadFull(conn, frame); err != nil {
			break
		}
		s.printEvent(frame)
		var head struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(frame, &head) == nil && head.Type == "final" {
			break
		}
	}

	// The final event ends the stream; ack so the server's Close() unblocks.
	_, _ = conn.Write([]byte{1})
	return nil
}

func (s *session) printEvent(frame []byte) {
	var pretty interface{}
	if err := json.Unmarshal(frame, &pretty); err != nil {
		s.printLine("%s", string(frame))
		return
	}
	formatted, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		s.printLine("%s", string(frame))
		return
	}
	s.printLine("%s", string(formatted))
}

func (s *session) printHelp() {
	s.printLine("usage: submit <task.json> | connect <host:port> | help | exit")
}

func (s *session) printLine(format string, args ...interface{}) {
	fmt.Fprintf(s.rl.Stdout(), format+"\n", args...)
}
