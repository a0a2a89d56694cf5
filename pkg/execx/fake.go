package execx

import (
	"context"
	"strings"
	"sync"
)

// Call is one command a Fake was asked to run.
type Call struct {
	Name string
	Args []string
}

// CommandLine joins the call into a single space separated string.
func (c Call) CommandLine() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Response is a canned result for every call whose command line contains Match.
type Response struct {
	Match  string
	Output Output
	Err    error
	Once   bool // drop the response after its first use
}

// Fake is an in-memory Runner. It answers with the first matching Response
// and records every call. Unmatched calls succeed with empty output.
type Fake struct {
	mu        sync.Mutex
	Responses []Response
	Calls     []Call
}

// On appends a response for command lines containing match.
func (f *Fake) On(match string, out Output, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses = append(f.Responses, Response{Match: match, Output: out, Err: err})
	return f
}

// Once appends a response that is used a single time.
func (f *Fake) Once(match string, out Output, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses = append(f.Responses, Response{Match: match, Output: out, Err: err, Once: true})
	return f
}

// Run implements Runner.
func (f *Fake) Run(ctx context.Context, name string, args ...string) (Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := Call{Name: name, Args: append([]string(nil), args...)}
	f.Calls = append(f.Calls, call)
	if err := ctx.Err(); err != nil {
		return Output{ExitCode: -1}, &CommandError{Name: name, Args: args, ExitCode: -1, Err: err}
	}

	line := call.CommandLine()
	for i, r := range f.Responses {
		if !strings.Contains(line, r.Match) {
			continue
		}
		if r.Once {
			f.Responses = append(f.Responses[:i:i], f.Responses[i+1:]...)
		}
		if r.Err == nil && r.Output.ExitCode != 0 {
			return r.Output, &CommandError{Name: name, Args: args, ExitCode: r.Output.ExitCode, Stderr: r.Output.Stderr}
		}
		return r.Output, r.Err
	}
	return Output{}, nil
}

// CallsMatching returns the recorded calls whose command line contains match.
func (f *Fake) CallsMatching(match string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if strings.Contains(c.CommandLine(), match) {
			out = append(out, c)
		}
	}
	return out
}
