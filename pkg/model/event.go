package model

import (
	"strings"

	"google.golang.org/genai"
)

// Sequence identifies a conversation turn. It anchors point-in-time reads.
type Sequence int

type Role string

const (
	RoleUser             Role = "user"
	RoleModel            Role = "model"
	RoleFunction         Role = "function"
	RoleFunctionResponse Role = "function_response"
)

// Event is one immutable entry of the conversation log. The set of
// implementations is closed: UserEvent, ModelEvent, FunctionCallEvent and
// FunctionResponseEvent.
type Event interface {
	Role() Role
	Sequence() Sequence
	event()
}

type UserEvent struct {
	Seq   Sequence
	Parts []*genai.Part
}

type ModelEvent struct {
	Seq   Sequence
	Parts []*genai.Part
}

type FunctionCallEvent struct {
	Seq  Sequence
	Name string
	Args map[string]any
}

type FunctionResponseEvent struct {
	Seq      Sequence
	Name     string
	Response map[string]any
}

func (e *UserEvent) Role() Role             { return RoleUser }
func (e *ModelEvent) Role() Role            { return RoleModel }
func (e *FunctionCallEvent) Role() Role     { return RoleFunction }
func (e *FunctionResponseEvent) Role() Role { return RoleFunctionResponse }

func (e *UserEvent) Sequence() Sequence             { return e.Seq }
func (e *ModelEvent) Sequence() Sequence            { return e.Seq }
func (e *FunctionCallEvent) Sequence() Sequence     { return e.Seq }
func (e *FunctionResponseEvent) Sequence() Sequence { return e.Seq }

func (e *UserEvent) event()             {}
func (e *ModelEvent) event()            {}
func (e *FunctionCallEvent) event()     {}
func (e *FunctionResponseEvent) event() {}

const displayLimit = 256

// DisplayText returns a single-line summary of an event for listings.
// Newlines are flattened and the result is cut at 256 characters.
func DisplayText(ev Event) string {
	var text string
	switch e := ev.(type) {
	case *UserEvent:
		text = partsText(e.Parts)
	case *ModelEvent:
		text = partsText(e.Parts)
	case *FunctionCallEvent:
		text = e.Name + " " + compactJSON(e.Args)
	case *FunctionResponseEvent:
		text = e.Name + " " + compactJSON(e.Response)
	}

	text = strings.ReplaceAll(text, "\n", " ")
	if r := []rune(text); len(r) > displayLimit {
		text = string(r[:displayLimit])
	}
	return text
}

func partsText(parts []*genai.Part) string {
	var texts []string
	for _, p := range parts {
		switch {
		case p == nil:
		case p.Text != "":
			texts = append(texts, p.Text)
		case p.InlineData != nil:
			texts = append(texts, "<"+p.InlineData.MIMEType+">")
		}
	}
	return strings.Join(texts, " ")
}
