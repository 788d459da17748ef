package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/procwatch/procwatch/internal/model"
)

// TerminalPrompter asks on a terminal: [d]eny / allow [o]nce / allow
// [a]lways. Anything unrecognized denies.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

// Ask prints the request and reads one line. The read runs in a
// goroutine so ctx cancellation is honored even while blocked on stdin.
func (p *TerminalPrompter) Ask(ctx context.Context, req Request) (model.ApprovalResponse, error) {
	fmt.Fprintf(p.Out, "\n%s\n%s\n", req.Title, req.Message)
	if req.Details != "" {
		fmt.Fprintf(p.Out, "%s\n", req.Details)
	}
	fmt.Fprintf(p.Out, "[d]eny / allow [o]nce / allow [a]lways: ")

	type line struct {
		text string
		err  error
	}
	ch := make(chan line, 1)
	go func() {
		reader := bufio.NewReader(p.In)
		text, err := reader.ReadString('\n')
		ch <- line{text, err}
	}()

	select {
	case <-ctx.Done():
		return model.ResponseDeny, ctx.Err()
	case l := <-ch:
		if l.err != nil && l.text == "" {
			return model.ResponseDeny, l.err
		}
		switch strings.ToLower(strings.TrimSpace(l.text)) {
		case "o", "once", "y", "yes":
			return model.ResponseAllowOnce, nil
		case "a", "always":
			return model.ResponseAllowAlways, nil
		default:
			return model.ResponseDeny, nil
		}
	}
}
