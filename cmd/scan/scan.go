package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/AMEND09/ID-Scanner/internal/app"
	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/decoder"
	"github.com/AMEND09/ID-Scanner/internal/logger"
	"github.com/AMEND09/ID-Scanner/internal/notification"
	codes "github.com/AMEND09/ID-Scanner/internal/scan"
	"github.com/AMEND09/ID-Scanner/internal/scanner"
)

const (
	promptPollInterval = 200 * time.Millisecond
	settleTimeout      = time.Second
	manualPrefix       = "/id "
	cancelInput        = "/cancel"
)

// Command creates the scan command, which reads a keyboard-wedge scanner on stdin.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan IDs from a keyboard-wedge scanner on stdin",
		Long: `Start the scanner and log every scanned ID to the selected sheet.

Each line on stdin is one scan. When a bare ID is scanned the scanner asks for the
student's full name and grade; answer with "Full Name, Grade" or "/cancel".
Type "/id 12345" to log an ID by hand. Stop with Ctrl+C or end of input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				return run(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

func run(ctx context.Context, a *app.App, in io.Reader, w io.Writer) error {
	log := logger.Global().Module("cli")
	out := &syncWriter{w: w}

	p, err := a.Sessions.StartScanner(ctx)
	if err != nil {
		return err
	}
	defer a.Sessions.StopScanner()

	notes, unsubscribe := a.Notifications.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	asker := &prompter{out: out}
	wg.Go(func() { watch(ctx, p, asker, notes, out) })

	target := a.Sessions.Target()
	fmt.Fprintf(out, "Scanning to %s / %s. Press Ctrl+C to stop.\n", target.SpreadsheetName, target.TabName)

	if !a.Settings.Scanner.Stdin {
		<-ctx.Done()
		return nil
	}

	err = decoder.ReadLines(ctx, in, func(line string) {
		handleLine(ctx, p, asker, line, out)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("scan input closed")
	return nil
}

// handleLine routes one input line: a manual ID, an answer to the open prompt, or a scan.
func handleLine(ctx context.Context, p *scanner.Pipeline, asker *prompter, line string, out io.Writer) {
	trimmed := strings.TrimSpace(line)

	if id, ok := strings.CutPrefix(trimmed, manualPrefix); ok {
		if err := p.SubmitManual(id); err != nil {
			fmt.Fprintf(out, "✗ %v\n", err)
		}
		return
	}

	if _, pending := p.PendingPrompt(); pending {
		switch {
		case trimmed == cancelInput:
			_ = p.CancelPrompt()
			fmt.Fprintln(out, "Cancelled")
		case codes.Classify(trimmed).Valid():
			fmt.Fprintln(out, "Scan ignored, answer the open prompt first")
		default:
			name, grade := splitAnswer(trimmed)
			if _, err := p.SubmitPrompt(name, grade); err != nil {
				fmt.Fprintf(out, "✗ %v\n", err)
			}
		}
		return
	}

	if !p.Deliver(line) {
		fmt.Fprintln(out, "Scan ignored")
		return
	}

	// The next line may answer a prompt this scan opens.
	settleCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	if err := p.Settle(settleCtx); err != nil {
		return
	}
	asker.ask(p)
}

// splitAnswer splits "Full Name, Grade" at the last comma.
func splitAnswer(s string) (name, grade string) {
	i := strings.LastIndex(s, ",")
	if i < 0 {
		return s, ""
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
}

// prompter asks for name and grade once per opened prompt.
type prompter struct {
	mu    sync.Mutex
	out   io.Writer
	asked string
}

func (pr *prompter) ask(p *scanner.Pipeline) {
	id, pending := p.PendingPrompt()

	pr.mu.Lock()
	defer pr.mu.Unlock()
	switch {
	case pending && id != pr.asked:
		pr.asked = id
		fmt.Fprintf(pr.out, "ID %s has no name on it. Enter \"Full Name, Grade\" or %s:\n", id, cancelInput)
	case !pending:
		pr.asked = ""
	}
}

// watch prints notifications and asks for input whenever a prompt opens.
func watch(ctx context.Context, p *scanner.Pipeline, asker *prompter, notes <-chan notification.Notification, out io.Writer) {
	ticker := time.NewTicker(promptPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notes:
			if !ok {
				return
			}
			fmt.Fprintln(out, n.Message)
		case <-ticker.C:
			asker.ask(p)
		}
	}
}

// syncWriter serializes writes from the input loop and the watcher.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(b)
}
