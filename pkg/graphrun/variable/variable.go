package variable

import (
	"fmt"

	"github.com/google/uuid"
)

// Reserved selector namespaces.
const (
	SystemNamespace       = "sys"
	EnvironmentNamespace  = "env"
	ConversationNamespace = "conversation"
)

// MinSelectorLength is the number of elements addressing a pool entry:
// node id (or namespace) followed by variable name.
const MinSelectorLength = 2

// Selector addresses a value in the pool. The first element is a node id
// or reserved namespace, the second a variable name; further elements
// traverse object keys and file attributes.
type Selector []string

// Valid reports whether s addresses a pool entry.
func (s Selector) Valid() bool {
	return len(s) >= MinSelectorLength && s[0] != "" && s[1] != ""
}

// Variable is a named segment with an identity.
type Variable struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Selector    Selector `json:"selector,omitempty"`
	Segment
}

// NewVariable builds a variable from a Go value, assigning a fresh id.
func NewVariable(name string, value any) (Variable, error) {
	if name == "" {
		return Variable{}, fmt.Errorf("variable name is required")
	}
	seg, err := Build(value)
	if err != nil {
		return Variable{}, fmt.Errorf("variable %s: %w", name, err)
	}
	return Variable{ID: uuid.NewString(), Name: name, Segment: seg}, nil
}

// NewSecretVariable builds a secret variable.
func NewSecretVariable(name, value string) Variable {
	return Variable{ID: uuid.NewString(), Name: name, Segment: NewSecret(value)}
}

// WithDescription returns a copy of v with the description set.
func (v Variable) WithDescription(desc string) Variable {
	v.Description = desc
	return v
}
