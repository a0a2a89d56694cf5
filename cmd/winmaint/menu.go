package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/windowsadmins/winmaint/pkg/filter"
	"github.com/windowsadmins/winmaint/pkg/tasks"
)

// printTasks lists tasks as "N. Name - description".
func printTasks(w io.Writer, ts []tasks.Task) {
	for _, t := range ts {
		kind := "action"
		if t.Audit() {
			kind = "audit"
		}
		fmt.Fprintf(w, "  %d. %-18s %-7s %s\n", t.Number(), t.Name(), kind, t.Description())
	}
}

// prompter reads answers from the console.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// selectTasks shows the menu until a valid selection is entered. An empty
// answer selects every task; q quits.
func (p *prompter) selectTasks(ts []tasks.Task, valid []int) ([]int, bool, error) {
	for {
		fmt.Fprintf(p.out, "\nAvailable tasks:\n")
		printTasks(p.out, ts)
		fmt.Fprintf(p.out, "\nSelect tasks (e.g. 1,3-5; Enter for all; q to quit): ")
		answer, err := p.readLine()
		if err != nil {
			return nil, false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return valid, true, nil
		case "q", "quit", "exit":
			return nil, false, nil
		}
		sel, err := filter.ParseSelection(answer, valid)
		if err != nil {
			fmt.Fprintf(p.out, "Invalid selection: %v\n", err)
			continue
		}
		return sel, true, nil
	}
}

// confirm asks before a task that changes the system. Enter means yes.
func (p *prompter) confirm(t tasks.Task) bool {
	fmt.Fprintf(p.out, "Run task %d (%s)? (Y/n): ", t.Number(), t.Name())
	answer, err := p.readLine()
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "" || answer == "y" || answer == "yes"
}
