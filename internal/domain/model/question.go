package model

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// OptionsPerQuestion is the fixed number of answer options.
const OptionsPerQuestion = 4

// Action is a poker decision attached to an answer option.
type Action string

const (
	ActionFold  Action = "fold"
	ActionCheck Action = "check"
	ActionCall  Action = "call"
	ActionBet   Action = "bet"
	ActionRaise Action = "raise"
	ActionAllIn Action = "allin"
)

// ParseAction normalizes s ("All-In", "RAISE") into an Action.
func ParseAction(s string) (Action, error) {
	n := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	switch a := Action(n); a {
	case ActionFold, ActionCheck, ActionCall, ActionBet, ActionRaise, ActionAllIn:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Option is one answer choice.
type Option struct {
	ID      string `json:"id" yaml:"id" validate:"required"`
	Label   string `json:"label" yaml:"label"`
	Action  Action `json:"action,omitempty" yaml:"action" validate:"omitempty,oneof=fold check call bet raise allin"`
	Correct bool   `json:"correct" yaml:"correct"`
}

// Question is supplied externally; correctness is authored per option.
type Question struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Options     []Option `json:"options" yaml:"options" validate:"len=4,dive"`
	Explanation string   `json:"explanation" yaml:"explanation"`
	HandID      string   `json:"hand_id,omitempty" yaml:"hand_id"`
	NodeID      string   `json:"node_id,omitempty" yaml:"node_id"`
}

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals // validator caches struct metadata

// Validate checks that q has four uniquely identified options and exactly one correct answer.
func (q Question) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidQuestion, q.ID, err)
	}
	seen := make(map[string]struct{}, len(q.Options))
	correct := 0
	for _, o := range q.Options {
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("%w %q: duplicate option %q", ErrInvalidQuestion, q.ID, o.ID)
		}
		seen[o.ID] = struct{}{}
		if o.Correct {
			correct++
		}
	}
	if correct != 1 {
		return fmt.Errorf("%w %q: %d correct options", ErrInvalidQuestion, q.ID, correct)
	}
	return nil
}

// CorrectOption returns the correct option. Validate must have passed.
func (q Question) CorrectOption() Option {
	for _, o := range q.Options {
		if o.Correct {
			return o
		}
	}
	return Option{}
}

// Option looks up an option by id.
func (q Question) Option(id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}
