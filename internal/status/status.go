// Package status defines the numeric result codes every dashboard handler
// reports in its JSON body.  The codes are part of the public contract:
// front-end code and stored payloads match on the raw integers, so a value
// must never change once released.
package status

import (
	"errors"
	"fmt"
	"strings"
)

// Outcome is the named result of a backend operation.
type Outcome int

const (
	Success Outcome = iota
	MissingRequiredField
	InternalServerError
	InputValidationFailed
	OperationFailed
	NotFound
	AlreadyExists
)

// ErrUnrecognizedOutcome is returned when a value outside the closed
// Outcome set reaches a lookup.
var ErrUnrecognizedOutcome = errors.New("unrecognized outcome")

type entry struct {
	name string
	code int
}

// registry is indexed by Outcome.  Written once at init, read-only after.
var registry = [...]entry{
	Success:               {"Success", 0},
	MissingRequiredField:  {"MissingRequiredField", -101},
	InternalServerError:   {"InternalServerError", -110},
	InputValidationFailed: {"InputValidationFailed", -102},
	OperationFailed:       {"OperationFailed", -103},
	NotFound:              {"NotFound", -104},
	AlreadyExists:         {"AlreadyExists", -105},
}

var (
	byName = make(map[string]Outcome, len(registry))
	byCode = make(map[int]Outcome, len(registry))
)

func init() {
	for i, e := range registry {
		o := Outcome(i)
		if _, dup := byCode[e.code]; dup {
			panic(fmt.Sprintf("status: duplicate code %d for %s", e.code, e.name))
		}
		byCode[e.code] = o
		byName[strings.ToLower(e.name)] = o
	}
}

func (o Outcome) valid() bool { return o >= 0 && int(o) < len(registry) }

// Code returns the wire code for o.
func (o Outcome) Code() (int, error) {
	if !o.valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnrecognizedOutcome, int(o))
	}
	return registry[o].code, nil
}

// String returns the outcome's name, or "Outcome(n)" for values outside the set.
func (o Outcome) String() string {
	if !o.valid() {
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
	return registry[o].name
}

// CodeFor is the package-level form of Outcome.Code.
func CodeFor(o Outcome) (int, error) { return o.Code() }

// MustCode is CodeFor for the declared constants.  It panics on any other
// value, so it must not be used with outcomes that came from outside the
// process.
func MustCode(o Outcome) int {
	c, err := o.Code()
	if err != nil {
		panic(err)
	}
	return c
}

// ParseOutcome resolves an outcome by name, case-insensitively.
func ParseOutcome(name string) (Outcome, error) {
	if o, ok := byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return o, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnrecognizedOutcome, name)
}

// FromCode resolves the outcome carried by a raw wire code.
func FromCode(code int) (Outcome, error) {
	if o, ok := byCode[code]; ok {
		return o, nil
	}
	return 0, fmt.Errorf("%w: code %d", ErrUnrecognizedOutcome, code)
}

// Outcomes lists every recognized outcome in declaration order.
func Outcomes() []Outcome {
	out := make([]Outcome, len(registry))
	for i := range registry {
		out[i] = Outcome(i)
	}
	return out
}

// MarshalText encodes the outcome by name so it can be used in logs and
// JSON map keys.
func (o Outcome) MarshalText() ([]byte, error) {
	if !o.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnrecognizedOutcome, int(o))
	}
	return []byte(registry[o].name), nil
}

// UnmarshalText is the inverse of MarshalText.
func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
