package procedure

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// maxTokens bounds the tokenizer, per spec.md §4.5 ("a large bounded
// number of tokens"). No real invocation should ever need more than
// this many argv elements.
const maxTokens = 4096

var (
	// ErrEmptySpec is returned when a command spec is effectively empty
	// after trimming. In practice this is a "-p" argument's TEST half: an
	// empty PROGRAM half defaults to "auto" instead.
	ErrEmptySpec = errors.New("procedure: empty program spec")
	// ErrTooManyTokens is returned when a command spec exceeds maxTokens.
	ErrTooManyTokens = errors.New("procedure: too many tokens in command spec")
	// ErrEmptyPattern is returned for a "&" test with no regex body.
	ErrEmptyPattern = errors.New("procedure: empty pattern after '&'")
)

// Default returns the procedure list used when no "-p" flag is given
// at all: equivalent to "-p auto".
func Default() []Procedure {
	return []Procedure{
		{Program: autoProgram{}, Test: shebangOrExecutableTest{}},
	}
}

// Parse parses one "-p" argument of the form "PROGRAM" or
// "PROGRAM;TEST" into a Procedure, applying the defaulting rules of
// spec.md §4.5.
func Parse(spec string) (Procedure, error) {
	programStr, testStr, hasTest := splitSpec(spec)

	programStr = strings.TrimSpace(programStr)
	if programStr == "" {
		programStr = "auto"
	}

	prog, progTokens, err := parseProgram(programStr)
	if err != nil {
		return Procedure{}, err
	}

	var test Test
	if hasTest {
		test, err = parseTest(strings.TrimSpace(testStr))
		if err != nil {
			return Procedure{}, err
		}
	} else {
		switch programStr {
		case "auto":
			test = shebangOrExecutableTest{}
		case "self":
			test = executableTest{}
		default:
			test = externalTest{
				path:        progTokens.path,
				argv:        progTokens.argv,
				placeholder: progTokens.placeholder,
				filter:      progTokens.filter,
			}
		}
	}

	return Procedure{Program: prog, Test: test}, nil
}

// splitSpec splits "PROGRAM" or "PROGRAM;TEST" on the first ';'.
func splitSpec(spec string) (programStr, testStr string, hasTest bool) {
	i := strings.IndexByte(spec, ';')
	if i < 0 {
		return spec, "", false
	}
	return spec[:i], spec[i+1:], true
}

type commandTokens struct {
	path        string
	argv        []string
	placeholder int
	filter      bool
}

func parseProgram(s string) (Program, commandTokens, error) {
	switch s {
	case "auto":
		return autoProgram{}, commandTokens{}, nil
	case "self":
		return selfProgram{}, commandTokens{}, nil
	default:
		ct, err := tokenizeCommand(s)
		if err != nil {
			return nil, commandTokens{}, err
		}
		return externalProgram{
			path:        ct.path,
			argv:        ct.argv,
			placeholder: ct.placeholder,
			filter:      ct.filter,
		}, ct, nil
	}
}

func parseTest(s string) (Test, error) {
	switch {
	case s == "always":
		return alwaysTest{}, nil
	case s == "executable":
		return executableTest{}, nil
	case strings.HasPrefix(s, "&"):
		body := s[1:]
		if body == "" {
			return nil, ErrEmptyPattern
		}
		re, err := regexp.CompilePOSIX(body)
		if err != nil {
			return nil, fmt.Errorf("procedure: invalid pattern %q: %w", body, err)
		}
		return patternTest{re: re}, nil
	default:
		ct, err := tokenizeCommand(s)
		if err != nil {
			return nil, err
		}
		return externalTest{
			path:        ct.path,
			argv:        ct.argv,
			placeholder: ct.placeholder,
			filter:      ct.filter,
		}, nil
	}
}

// tokenizeCommand splits a shell-style command spec on runs of
// space/tab/newline, ignoring leading/trailing whitespace, and
// locates the "!" file-placeholder token among the argv tail.
func tokenizeCommand(s string) (commandTokens, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return commandTokens{}, ErrEmptySpec
	}
	if len(fields) > maxTokens {
		return commandTokens{}, ErrTooManyTokens
	}

	placeholder := -1
	for i := 1; i < len(fields); i++ {
		if fields[i] == "!" {
			placeholder = i
			break
		}
	}

	return commandTokens{
		path:        fields[0],
		argv:        fields,
		placeholder: placeholder,
		filter:      placeholder < 0,
	}, nil
}
