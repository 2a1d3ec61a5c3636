package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"gofer/internal/session"
	"gofer/internal/tools"
	"gofer/internal/turn"
)

// runChat is the interactive REPL: read a prompt, stream the turn's events,
// answer confirmation requests, repeat.
func runChat() error {
	sess, cfg, err := newSession()
	if err != nil {
		return err
	}
	logger.Info("Chat session started",
		zap.String("session", sess.ID),
		zap.String("model", sess.Model()),
		zap.String("workspace", cfg.TargetDir))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("gofer ready (model %s, workspace %s). Type /help for commands.\n", sess.Model(), cfg.TargetDir)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if quit := handleSlashCommand(sess, input); quit {
				return nil
			}
			continue
		}
		if err := runTurn(ctx, sess, scanner, input); err != nil {
			fmt.Fprintf(os.Stderr, "\n[error] %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// runOneShot executes a single prompt with confirmations read from stdin.
func runOneShot(args []string) error {
	sess, _, err := newSession()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanner := bufio.NewScanner(os.Stdin)
	return runTurn(ctx, sess, scanner, strings.Join(args, " "))
}

// maxAutoContinues bounds how many times the model may keep the floor after
// a committed turn before control returns to the operator.
const maxAutoContinues = 3

// runTurn runs a prompt to completion, letting the model continue unprompted
// when the next-speaker check says it still holds the floor.
func runTurn(ctx context.Context, sess *session.Session, scanner *bufio.Scanner, prompt string) error {
	current := prompt
	for i := 0; ; i++ {
		if err := drainTurn(ctx, sess, scanner, current); err != nil {
			return err
		}
		if ctx.Err() != nil || i >= maxAutoContinues {
			return nil
		}
		if sess.CheckNextSpeaker(ctx) != session.SpeakerModel {
			return nil
		}
		current = "Please continue."
	}
}

// drainTurn consumes one turn's event stream, rendering text incrementally
// and prompting on confirmation requests.
func drainTurn(ctx context.Context, sess *session.Session, scanner *bufio.Scanner, prompt string) error {
	var turnErr error
	for event := range sess.Send(ctx, prompt) {
		switch event.Kind {
		case turn.EventContent:
			fmt.Print(event.Content)
		case turn.EventConfirmationRequest:
			outcome := promptConfirmation(scanner, event.Call)
			if err := sess.ResolveConfirmation(event.Call.Request, outcome); err != nil {
				turnErr = err
			}
		case turn.EventToolCallResponse:
			if fr := event.Response.FunctionResponse; fr != nil {
				if msg, ok := fr.Response["error"]; ok {
					fmt.Printf("\n[tool %s] error: %v\n", fr.Name, msg)
				} else {
					fmt.Printf("\n[tool %s] done\n", fr.Name)
				}
			}
		case turn.EventCitations:
			fmt.Printf("\n[citations] %v\n", event.Citations)
		case turn.EventError:
			turnErr = event.Err
		}
	}
	fmt.Println()
	return turnErr
}

// promptConfirmation renders a pending call and reads the operator's
// decision: y (once), a (always), anything else cancels. With --yolo every
// call is approved automatically.
func promptConfirmation(scanner *bufio.Scanner, call *turn.ToolCall) tools.Outcome {
	if yolo {
		return tools.OutcomeProceedOnce
	}
	c := call.Confirmation
	fmt.Printf("\n--- confirmation required: %s (%s) ---\n", call.Request.Name, c.Type)
	switch c.Type {
	case tools.ConfirmExec:
		fmt.Printf("  command: %s\n", c.Command)
	case tools.ConfirmEdit:
		fmt.Printf("  file: %s\n%s", c.Path, c.Diff)
	case tools.ConfirmWrite:
		fmt.Printf("  file: %s\n", c.Path)
	case tools.ConfirmMemoryWrite:
		fmt.Printf("  fact: %s\n  file: %s\n", c.Fact, c.Path)
	}
	fmt.Print("Proceed? [y]es once / [a]lways / [n]o: ")
	if !scanner.Scan() {
		return tools.OutcomeCancel
	}
	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return tools.OutcomeProceedOnce
	case "a", "always":
		return tools.OutcomeProceedAlways
	default:
		return tools.OutcomeCancel
	}
}

// handleSlashCommand dispatches REPL commands. Returns true to quit.
func handleSlashCommand(sess *session.Session, input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/reset":
		sess.Reset()
		fmt.Println("History cleared.")
	case "/stats":
		for k, v := range sess.Stats() {
			fmt.Printf("  %s: %v\n", k, v)
		}
	case "/model":
		if len(fields) > 1 {
			sess.SetModel(fields[1])
			fmt.Printf("Model set to %s.\n", fields[1])
		} else {
			fmt.Printf("Current model: %s\n", sess.Model())
		}
	case "/tools":
		for _, name := range sess.Registry().Names() {
			fmt.Printf("  %s\n", name)
		}
	case "/help":
		fmt.Println("  /quit   exit the chat")
		fmt.Println("  /reset  clear conversation history")
		fmt.Println("  /stats  show session statistics")
		fmt.Println("  /model [name]  show or switch the active model")
		fmt.Println("  /tools  list registered tools")
		fmt.Println("  @path   inline a file's content into your prompt")
	default:
		fmt.Printf("Unknown command %s (try /help)\n", fields[0])
	}
	return false
}
