package models

import (
	"encoding/json"
	"fmt"
)

// Material kinds.
const (
	MaterialPlain      = "plain"
	MaterialAttachment = "attachment"
)

// Material is either a plain reference (a bare URL or free-form note, the
// legacy shape) or a structured attachment with metadata. Legacy rows store
// materials as bare JSON strings; UnmarshalJSON keeps accepting those.
type Material struct {
	Kind     string `json:"kind"`
	Ref      string `json:"ref,omitempty"`
	Name     string `json:"name,omitempty"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	SizeKB   int64  `json:"size_kb,omitempty"`
}

func PlainMaterial(ref string) Material {
	return Material{Kind: MaterialPlain, Ref: ref}
}

func (m Material) MarshalJSON() ([]byte, error) {
	if m.Kind == MaterialPlain {
		return json.Marshal(m.Ref)
	}
	type alias Material
	return json.Marshal(alias(m))
}

func (m *Material) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var ref string
		if err := json.Unmarshal(data, &ref); err != nil {
			return err
		}
		*m = Material{Kind: MaterialPlain, Ref: ref}
		return nil
	}
	type alias Material
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Kind == "" {
		a.Kind = MaterialAttachment
	}
	if a.Kind != MaterialPlain && a.Kind != MaterialAttachment {
		return fmt.Errorf("unknown material kind %q", a.Kind)
	}
	*m = Material(a)
	return nil
}
