package model

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// EventRecord is the serialized form of an Event. Decoding is lenient so
// that older exports can be replayed: sequence may be missing, function
// details may use the flat function_name/args/result keys, and parts may
// be plain strings or {mime_type, data} objects.
type EventRecord struct {
	Role             Role                `json:"role"`
	Parts            Parts               `json:"parts"`
	Sequence         *Sequence           `json:"sequence,omitempty"`
	FunctionCall     *FunctionCallRecord `json:"function_call,omitempty"`
	FunctionResponse *FunctionRespRecord `json:"function_response,omitempty"`

	FunctionName string         `json:"function_name,omitempty"`
	Args         map[string]any `json:"args,omitempty"`
	Result       map[string]any `json:"result,omitempty"`
}

type FunctionCallRecord struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type FunctionRespRecord struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Call returns the function name and arguments of a function record in
// either the nested or the flat legacy shape.
func (r *EventRecord) Call() (string, map[string]any) {
	if r.FunctionCall != nil {
		return r.FunctionCall.Name, r.FunctionCall.Args
	}
	return r.FunctionName, r.Args
}

// Response returns the function name and response of a function_response
// record in either shape.
func (r *EventRecord) Response() (string, map[string]any) {
	if r.FunctionResponse != nil {
		return r.FunctionResponse.Name, r.FunctionResponse.Response
	}
	return r.FunctionName, r.Result
}

// NewEventRecord converts an event into its canonical serialized form
func NewEventRecord(ev Event) *EventRecord {
	seq := ev.Sequence()
	rec := &EventRecord{
		Role:     ev.Role(),
		Parts:    Parts{},
		Sequence: &seq,
	}

	switch e := ev.(type) {
	case *UserEvent:
		rec.Parts = append(rec.Parts, e.Parts...)
	case *ModelEvent:
		rec.Parts = append(rec.Parts, e.Parts...)
	case *FunctionCallEvent:
		rec.FunctionCall = &FunctionCallRecord{Name: e.Name, Args: e.Args}
	case *FunctionResponseEvent:
		rec.FunctionResponse = &FunctionRespRecord{Name: e.Name, Response: e.Response}
	}

	return rec
}

// Parts is a list of content parts that also accepts the legacy encodings
type Parts []*genai.Part

type legacyBlob struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

func (p *Parts) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return goerr.Wrap(err, "parts must be a list")
	}

	parts := make(Parts, 0, len(raws))
	for i, raw := range raws {
		part, err := decodePart(raw)
		if err != nil {
			return goerr.Wrap(err, "failed to decode part", goerr.V("index", i))
		}
		parts = append(parts, part)
	}

	*p = parts
	return nil
}

func decodePart(raw json.RawMessage) (*genai.Part, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, goerr.Wrap(err, "invalid text part")
		}
		return genai.NewPartFromText(text), nil
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return nil, goerr.Wrap(err, "part must be a string or an object")
	}

	if _, ok := keys["mime_type"]; ok {
		var blob legacyBlob
		if err := json.Unmarshal(trimmed, &blob); err != nil {
			return nil, goerr.Wrap(err, "invalid inline data part")
		}
		data, err := base64.StdEncoding.DecodeString(blob.Data)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid base64 data", goerr.V("mime_type", blob.MIMEType))
		}
		return genai.NewPartFromBytes(data, blob.MIMEType), nil
	}

	var part genai.Part
	if err := json.Unmarshal(trimmed, &part); err != nil {
		return nil, goerr.Wrap(err, "invalid part")
	}
	return &part, nil
}
