package profile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
)

// ScriptTimeout is the hard limit for a single evaluation.
const ScriptTimeout = 2 * time.Second

// EvalError represents a parse or runtime error in a profile script.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

type memoKey struct {
	depth, total float64
}

// Script is a compiled wall-profile expression. The symbols depth and total
// are bound before the script runs; the value of its last expression is the
// offset. Each evaluation runs in a fresh sandbox and results are memoized
// per (depth, total). A Script is safe for concurrent use.
type Script struct {
	source  string
	timeout time.Duration

	mu    sync.Mutex
	memo  map[memoKey]float64
	evals atomic.Int64
}

// Compile checks source for syntax errors.
//
// Return semantics:
//   - On success: returns script + nil errors + nil error
//   - On parse failure: returns nil script + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func Compile(source string) (*Script, []EvalError, error) {
	if strings.TrimSpace(source) == "" {
		return nil, []EvalError{{Message: "empty wall profile script"}}, nil
	}
	s := &Script{
		source:  preprocessSource(source),
		timeout: ScriptTimeout,
		memo:    make(map[memoKey]float64),
	}

	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic while compiling: %v", r)}
			}
		}()
		env := zygo.NewZlispSandbox()
		defer env.Stop()
		registerBuiltins(env)
		if err := env.LoadString(s.program(0, 0)); err != nil {
			ch <- evalResult{errors: parseZygomysError(err)}
			return
		}
		ch <- evalResult{}
	}()
	res, err := waitWithTimeout(ch, s.timeout)
	if err != nil {
		return nil, nil, err
	}
	if len(res.errors) > 0 {
		return nil, res.errors, nil
	}
	return s, nil, nil
}

// program prepends the bindings for one evaluation.
func (s *Script) program(depth, total float64) string {
	return fmt.Sprintf("(def depth %s)\n(def total %s)\n%s",
		formatNumber(depth), formatNumber(total), s.source)
}

// formatNumber always produces a float literal so that arithmetic on the
// bindings stays in floating point.
func formatNumber(v float64) string {
	str := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(str, ".") {
		str += ".0"
	}
	return str
}

// Offset implements schedule.WallProfile.
func (s *Script) Offset(depth, total float64) (float64, error) {
	key := memoKey{depth, total}
	s.mu.Lock()
	if v, ok := s.memo[key]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	v, err := s.evaluate(depth, total)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.memo[key] = v
	s.mu.Unlock()
	return v, nil
}

func (s *Script) evaluate(depth, total float64) (float64, error) {
	s.evals.Add(1)
	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		env := zygo.NewZlispSandbox()
		defer env.Stop()
		registerBuiltins(env)
		if err := env.LoadString(s.program(depth, total)); err != nil {
			ch <- evalResult{errors: parseZygomysError(err)}
			return
		}
		out, err := env.Run()
		if err != nil {
			ch <- evalResult{errors: parseZygomysError(err)}
			return
		}
		v, err := toFloat64(out)
		if err != nil {
			ch <- evalResult{errors: []EvalError{{Message: err.Error()}}}
			return
		}
		ch <- evalResult{value: v}
	}()

	res, err := waitWithTimeout(ch, s.timeout)
	if err != nil {
		return 0, err
	}
	if len(res.errors) > 0 {
		return 0, fmt.Errorf("wall profile at depth %g: %w", depth, res.errors[0])
	}
	return res.value, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// bindingLines is the number of lines program() prepends to user source.
const bindingLines = 2

// parseZygomysError converts a zygomys error into EvalError values, with
// line numbers relative to the user's source.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    max(line-bindingLines, 0),
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
