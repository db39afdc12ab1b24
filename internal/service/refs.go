package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// TagRefKind is the variant of a TagRef.
type TagRefKind int

const (
	// TagByName is a bare string: "smoke".
	TagByName TagRefKind = iota + 1
	// TagByID is {"id": 3}.
	TagByID
	// TagByNameObject is {"name": "smoke"}.
	TagByNameObject
)

// TagRef is one entry of a payload's tags list. A TagByID ref with a zero ID
// came from a non-positive id and never matches a row.
type TagRef struct {
	Kind TagRefKind
	ID   uint
	Name string
}

// Skip reports whether the ref names nothing and should be ignored.
func (r TagRef) Skip() bool {
	return r.Kind != TagByID && r.Name == ""
}

func (r TagRef) String() string {
	if r.Kind == TagByID {
		return fmt.Sprintf("id=%d", r.ID)
	}
	return r.Name
}

func (r TagRef) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case TagByID:
		return json.Marshal(map[string]uint{"id": r.ID})
	case TagByNameObject:
		return json.Marshal(map[string]string{"name": r.Name})
	default:
		return json.Marshal(r.Name)
	}
}

func (r *TagRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	shapeErr := invalid("tags", "each tag must be a string or an object with 'id' or 'name'")

	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return shapeErr
		}
		*r = TagRef{Kind: TagByName, Name: strings.TrimSpace(name)}
		return nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return shapeErr
	}
	if raw, ok := obj["id"]; ok {
		id, err := cast.ToInt64E(raw)
		if err != nil {
			return invalid("tags", "tag id must be an integer")
		}
		*r = TagRef{Kind: TagByID, ID: positiveID(id)}
		return nil
	}
	if raw, ok := obj["name"]; ok {
		*r = TagRef{Kind: TagByNameObject, Name: strings.TrimSpace(cast.ToString(raw))}
		return nil
	}
	return shapeErr
}

// SuiteRef is one entry of a payload's suite_links list. It addresses a suite
// either by ID or by Name. A by-id ref with a zero ID never matches a row.
type SuiteRef struct {
	ID       uint
	Name     string
	Position *int

	badID bool
}

// ByID reports whether the ref addresses a suite by id.
func (r SuiteRef) ByID() bool {
	return r.ID != 0 || r.badID
}

// positiveID maps ids that cannot name a row to 0.
func positiveID(id int64) uint {
	if id <= 0 {
		return 0
	}
	return uint(id)
}

func (r SuiteRef) String() string {
	if r.ByID() {
		return fmt.Sprintf("suite_id=%d", r.ID)
	}
	return r.Name
}

func (r SuiteRef) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{}
	if r.ByID() {
		out["suite_id"] = r.ID
	} else {
		out["suite_name"] = r.Name
	}
	if r.Position != nil {
		out["position"] = *r.Position
	}
	return json.Marshal(out)
}

func (r *SuiteRef) UnmarshalJSON(data []byte) error {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return invalid("suite_links", "each suite link must be an object")
	}

	var ref SuiteRef
	if raw, ok := obj["position"]; ok && raw != nil {
		pos, err := cast.ToIntE(raw)
		if err != nil {
			return invalid("suite_links", "'position' must be an integer")
		}
		if pos < 1 {
			return invalid("suite_links", "'position' must be at least 1")
		}
		ref.Position = &pos
	}
	if raw, ok := obj["suite_id"]; ok && raw != nil {
		id, err := cast.ToInt64E(raw)
		if err != nil {
			return invalid("suite_links", "'suite_id' must be an integer")
		}
		ref.ID = positiveID(id)
		ref.badID = ref.ID == 0
	} else if raw, ok := obj["suite_name"]; ok && raw != nil {
		ref.Name = strings.TrimSpace(cast.ToString(raw))
	}
	if !ref.ByID() && ref.Name == "" {
		return invalid("suite_links", "each suite link must contain 'suite_id' or 'suite_name'")
	}
	*r = ref
	return nil
}
