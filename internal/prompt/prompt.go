// Package prompt asks the operator questions on a line-oriented terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInputClosed is returned once the input stream has ended.
var ErrInputClosed = errors.New("input closed")

// Terminal reads answers from in and writes prompts to out. It shares its
// reader with the shell so buffered input is never lost between the two.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal returns a Terminal over in and out.
func NewTerminal(in *bufio.Reader, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

// Confirm asks a yes/no question until the answer is y or n.
func (t *Terminal) Confirm(question string) (bool, error) {
	fmt.Fprintln(t.out, question)
	for {
		answer, err := t.ask("(y/n): ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y":
			return true, nil
		case "n":
			return false, nil
		}
		fmt.Fprintf(t.out, "Didn't understand %q. %s\n", answer, question)
	}
}

// Choose asks for one of options until an exact match is typed.
func (t *Terminal) Choose(question string, options []string) (string, error) {
	fmt.Fprintln(t.out, question)
	choices := fmt.Sprintf("Choose from - %s: ", strings.Join(options, ", "))
	for {
		answer, err := t.ask(choices)
		if err != nil {
			return "", err
		}
		for _, o := range options {
			if answer == o {
				return o, nil
			}
		}
		fmt.Fprintf(t.out, "%q is not one of %s\n", answer, strings.Join(options, ", "))
	}
}

// Display prints msg on its own line.
func (t *Terminal) Display(msg string) {
	fmt.Fprintln(t.out, msg)
}

func (t *Terminal) ask(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	line, err := ReadLine(t.in)
	if err != nil {
		fmt.Fprintln(t.out)
	}
	return line, err
}

// ReadLine reads one line without its terminator. A final line without a
// newline is returned normally; after that ErrInputClosed is returned.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrInputClosed
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
