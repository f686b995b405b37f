package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/andertben/skillspot-chat/internal/chatsync"
	"github.com/andertben/skillspot-chat/internal/models"
)

const tailTimeLayout = "02.01. 15:04"

type tailOptions struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	once   bool
	jsonl  bool
}

// runTail follows one thread without the interface. Lines read from in are
// sent one at a time, in order.
func runTail(ctx context.Context, a *app, threadID string, opts tailOptions) error {
	ctx, cancel := context.WithCancel(ctx)

	updates := make(chan chatsync.Update, 64)
	s, err := a.openSynchronizer(ctx, threadID, func(u chatsync.Update) {
		select {
		case updates <- u:
		case <-ctx.Done():
		}
	})
	if err != nil {
		cancel()
		return describeError("open thread", err)
	}
	// The loop may be blocked on updates; cancel before waiting for it.
	defer func() {
		cancel()
		_ = s.Close()
	}()
	a.rememberThread(threadID, "")

	printer := newTailPrinter(opts.out, opts.errOut, opts.jsonl)

	var lines <-chan string
	if !opts.once && opts.in != nil {
		lines = scanLines(ctx, opts.in)
	}
	sendResults := make(chan error, 1)
	var queue []string
	sending := false

	dispatch := func() {
		if sending || len(queue) == 0 {
			return
		}
		text := queue[0]
		queue = queue[1:]
		sending = true
		go func() {
			sendResults <- s.Send(text)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case u := <-updates:
			printer.apply(u)
			if opts.once && !u.View.Loading {
				switch {
				case u.Reason == chatsync.ReasonInitial:
					return nil
				case u.Reason == chatsync.ReasonError && u.View.Err != nil:
					return describeError("load thread", u.View.Err.Err)
				}
			}
			if u.Reason == chatsync.ReasonSend || u.Reason == chatsync.ReasonSendFailed {
				sending = false
				dispatch()
			}

		case err := <-sendResults:
			if err != nil {
				fmt.Fprintf(opts.errOut, "! %s\n", describeError("send", err))
				sending = false
				dispatch()
			}

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			queue = append(queue, line)
			dispatch()
		}
	}
}

// scanLines reads in line by line until EOF or ctx is done.
func scanLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// tailPrinter writes each message once, plus error transitions.
type tailPrinter struct {
	out    io.Writer
	errOut io.Writer
	jsonl  bool

	seen        map[string]struct{}
	header      bool
	lastErr     string
	lastSendErr string
}

func newTailPrinter(out, errOut io.Writer, jsonl bool) *tailPrinter {
	return &tailPrinter{
		out:    out,
		errOut: errOut,
		jsonl:  jsonl,
		seen:   make(map[string]struct{}),
	}
}

func (p *tailPrinter) apply(u chatsync.Update) {
	v := u.View
	if !p.header && !p.jsonl && (v.Counterpart != "" || v.Title != "") {
		fmt.Fprintf(p.out, "== %s · %s ==\n", v.Header(), v.DisplayTitle())
		p.header = true
	}

	for _, msg := range v.Messages {
		if _, ok := p.seen[msg.ID]; ok {
			continue
		}
		p.seen[msg.ID] = struct{}{}
		p.printMessage(v, msg)
	}

	p.lastErr = p.report(v.Err, p.lastErr)
	p.lastSendErr = p.report(v.SendErr, p.lastSendErr)
}

func (p *tailPrinter) printMessage(v chatsync.View, msg models.Message) {
	if p.jsonl {
		data, err := json.Marshal(msg)
		if err != nil {
			return
		}
		fmt.Fprintln(p.out, string(data))
		return
	}

	name := msg.SenderID
	switch {
	case v.IsOwn(msg):
		name = "Ich"
	case v.Counterpart != "":
		name = v.Counterpart
	}
	stamp := ""
	if !msg.Timestamp.IsZero() {
		stamp = "[" + msg.Timestamp.Local().Format(tailTimeLayout) + "] "
	}
	fmt.Fprintf(p.out, "%s%s: %s\n", stamp, name, msg.Text)
}

// report prints err when its message differs from last and returns the new
// last message.
func (p *tailPrinter) report(err *chatsync.ViewError, last string) string {
	if err == nil {
		return ""
	}
	if err.Message == last {
		return last
	}
	fmt.Fprintf(p.errOut, "! %s\n", err.Message)
	return err.Message
}
