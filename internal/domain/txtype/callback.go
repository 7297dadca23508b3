package txtype

import (
	"strings"

	"github.com/FACorreiaa/ledger-bot/internal/chat"
)

// Action is the kind of a menu button press
type Action int

const (
	ActionSelect Action = iota
	ActionPrev
	ActionNext
	ActionFilter
	ActionReset
)

// Reserved callback payloads of the control buttons.
const (
	tokenPrev   = "__prev"
	tokenNext   = "__next"
	tokenFilter = "__filter"
	tokenReset  = "__reset"

	// idPrefix marks an option payload carrying the record id instead of
	// the label, used when the label does not fit a callback payload.
	idPrefix = "#"
)

// Callback is a parsed menu button payload.
type Callback struct {
	Action Action
	Label  string // ActionSelect by label
	ID     string // ActionSelect by record id
}

// ParseCallback decodes a raw callback payload. Anything that is not a
// control token is an option selection.
func ParseCallback(data string) Callback {
	switch data {
	case tokenPrev:
		return Callback{Action: ActionPrev}
	case tokenNext:
		return Callback{Action: ActionNext}
	case tokenFilter:
		return Callback{Action: ActionFilter}
	case tokenReset:
		return Callback{Action: ActionReset}
	}
	if id, ok := strings.CutPrefix(data, idPrefix); ok && id != "" {
		return Callback{Action: ActionSelect, ID: id}
	}
	return Callback{Action: ActionSelect, Label: data}
}

// Data encodes the callback back into a payload.
func (c Callback) Data() string {
	switch c.Action {
	case ActionPrev:
		return tokenPrev
	case ActionNext:
		return tokenNext
	case ActionFilter:
		return tokenFilter
	case ActionReset:
		return tokenReset
	}
	if c.ID != "" {
		return idPrefix + c.ID
	}
	return c.Label
}

// Matches reports whether a selection callback refers to o.
func (c Callback) Matches(o Option) bool {
	if c.Action != ActionSelect {
		return false
	}
	if c.ID != "" {
		return c.ID == o.ID
	}
	return c.Label == o.Name
}

// SelectCallback returns the payload for choosing o: its label when that is
// unambiguous and fits, otherwise its id.
func SelectCallback(o Option) Callback {
	label := o.Name
	if len(label) > chat.MaxCallbackData || strings.HasPrefix(label, idPrefix) || isReserved(label) {
		return Callback{Action: ActionSelect, ID: o.ID}
	}
	return Callback{Action: ActionSelect, Label: label}
}

func isReserved(s string) bool {
	switch s {
	case tokenPrev, tokenNext, tokenFilter, tokenReset:
		return true
	}
	return false
}
