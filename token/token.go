// Package token decodes the run token passed on the command line into the
// context object embedded in every scorecard.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformed = errors.New("malformed token argument")

// Context is the object echoed back in the scorecard.
type Context struct {
	Token string `json:"token"`
}

// Parse decodes an argument of the form {key:value}. Braces are dropped, the
// remainder is split on ':' and the second field is the token. Any further
// fields are ignored.
func Parse(arg string) (Context, error) {
	s := strings.NewReplacer("{", "", "}", "").Replace(arg)
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return Context{}, fmt.Errorf("%w: expected {key:value}, got %q", ErrMalformed, arg)
	}
	return Context{Token: parts[1]}, nil
}

// JSON returns the context object, e.g. {"token":"abc"}.
func (c Context) JSON() (json.RawMessage, error) {
	return json.Marshal(c)
}
