package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// LinePresenter asks on a line-oriented terminal: numbered choices with
// Cancel last, and an "a" suffix (e.g. "1a") to apply the choice to the
// remaining prompts.
type LinePresenter struct {
	out io.Writer

	in       *bufio.Reader
	once     sync.Once
	lines    chan lineResult
	done     chan struct{} // closed by Close
	closer   sync.Once
	loopDone chan struct{} // closed when readLoop returns
}

type lineResult struct {
	text string
	err  error
}

// NewLinePresenter reads answers from in and writes questions to out.
func NewLinePresenter(in io.Reader, out io.Writer) *LinePresenter {
	return &LinePresenter{
		out:      out,
		in:       bufio.NewReader(in),
		lines:    make(chan lineResult),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// Close stops the reader goroutine once its pending read returns. Later
// prompts are dismissed.
func (l *LinePresenter) Close() error {
	l.closer.Do(func() { close(l.done) })
	return nil
}

// readLoop owns the reader so a prompt abandoned on ctx cancellation does
// not lose the next line to a stray read.
func (l *LinePresenter) readLoop() {
	defer close(l.loopDone)
	for {
		text, err := l.in.ReadString('\n')
		if err != nil && text == "" {
			select {
			case l.lines <- lineResult{err: err}:
				close(l.lines)
			case <-l.done:
			}
			return
		}
		select {
		case l.lines <- lineResult{text: text}:
		case <-l.done:
			return
		}
	}
}

func (l *LinePresenter) readLine(ctx context.Context) (string, error) {
	l.once.Do(func() { go l.readLoop() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-l.done:
		return "", ErrDismissed
	case res, ok := <-l.lines:
		if !ok || res.err == io.EOF {
			return "", ErrDismissed
		}
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(res.text), nil
	}
}

// Present implements Presenter.
func (l *LinePresenter) Present(ctx context.Context, req Request) (Answer, error) {
	options := append(append([]Choice(nil), req.Prompt.Choices...), Choice{Value: ChoiceCancel, Title: "Cancel"})

	fmt.Fprintf(l.out, "\n⚠️  %s", req.Prompt.Message)
	if req.Total > 1 {
		fmt.Fprintf(l.out, " (%d of %d)", req.Index+1, req.Total)
	}
	fmt.Fprintln(l.out)
	fmt.Fprintln(l.out, "What would you like to do?")
	for i, c := range options {
		fmt.Fprintf(l.out, "  %d. %s\n", i+1, c.Title)
	}
	if req.AllowApply() {
		fmt.Fprintf(l.out, "Add \"a\" to apply your choice to the remaining %d (e.g. 1a).\n", req.Remaining)
	}

	for {
		fmt.Fprintf(l.out, "Choose [1-%d]: ", len(options))

		input, err := l.readLine(ctx)
		if err != nil {
			fmt.Fprintln(l.out)
			return Answer{}, err
		}

		apply := false
		if req.AllowApply() && strings.HasSuffix(strings.ToLower(input), "a") {
			apply = true
			input = strings.TrimSpace(input[:len(input)-1])
		}

		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(options) {
			fmt.Fprintln(l.out, "Invalid choice, please try again.")
			continue
		}

		return Answer{Choice: options[n-1].Value, ApplyToRemaining: apply}, nil
	}
}
