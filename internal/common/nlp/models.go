// internal/common/nlp/models.go
package nlp

import (
	"encoding/json"
	"strings"
)

// Result is one parse returned by the NLP service.
type Result struct {
	Intent     *Intent  `json:"intent,omitempty"`
	Entities   []Entity `json:"entities"`
	NounChunks []string `json:"noun_chunks,omitempty"`
}

// Usable reports whether the parse carries an intent or an entities list.
func (r *Result) Usable() bool {
	if r == nil {
		return false
	}
	return (r.Intent != nil && r.Intent.Name != "") || r.Entities != nil
}

type Entity struct {
	Label string      `json:"label"`
	Text  string      `json:"text"`
	Value interface{} `json:"value,omitempty"`
}

// Intent accepts either a bare name ("greeting") or an object with
// name/label and confidence/score.
type Intent struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

func (i *Intent) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		i.Name = strings.TrimSpace(name)
		i.Confidence = 0
		return nil
	}

	var obj struct {
		Name       string   `json:"name"`
		Label      string   `json:"label"`
		Confidence *float64 `json:"confidence"`
		Score      *float64 `json:"score"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	i.Name = strings.TrimSpace(obj.Name)
	if i.Name == "" {
		i.Name = strings.TrimSpace(obj.Label)
	}
	switch {
	case obj.Confidence != nil:
		i.Confidence = *obj.Confidence
	case obj.Score != nil:
		i.Confidence = *obj.Score
	}
	return nil
}
