package decoder

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// maxWedgeLine bounds one scanned line; structured payloads stay far below it.
const maxWedgeLine = 64 * 1024

// ReadLines feeds every non-blank line of r to handle until r is exhausted or ctx is done.
// Keyboard-wedge scanners type a symbol followed by Enter, so one line is one detection.
// The reading goroutine only exits once r returns; callers owning r should close it.
func ReadLines(ctx context.Context, r io.Reader, handle func(line string)) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 4096), maxWedgeLine)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return ctx.Err()
				}
			}
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			handle(line)
		}
	}
}
