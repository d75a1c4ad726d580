package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Viewable is a renderable view derived from a design
type Viewable struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	GUID         string `json:"guid"`
	IsMasterView bool   `json:"isMasterView,omitempty"`
}

// Node is one element of a design hierarchy. A node is a leaf iff Children is empty.
type Node struct {
	ObjectID int64  `json:"objectid"`
	Name     string `json:"name,omitempty"`
	Children []Node `json:"objects,omitempty"`
}

// IsLeaf reports whether the node has no children
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// PropertyRecord is the flat property set of a single element
type PropertyRecord struct {
	ObjectID   int64                       `json:"objectid"`
	Name       string                      `json:"name"`
	ExternalID string                      `json:"externalId,omitempty"`
	Properties map[string]map[string]Value `json:"properties"`
}

// Lookup returns the raw value of category/attribute, if present
func (r *PropertyRecord) Lookup(category, attribute string) (Value, bool) {
	group, ok := r.Properties[category]
	if !ok {
		return Value{}, false
	}
	v, ok := group[attribute]
	return v, ok
}

// Value is a property value as returned upstream. The service usually sends
// strings, even for numbers, but plain JSON numbers and nulls are accepted too.
type Value struct {
	Text  string
	Valid bool
}

// Text returns a present value holding s
func Text(s string) Value {
	return Value{Text: s, Valid: true}
}

// UnmarshalJSON accepts strings, numbers, booleans and null
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*v = Text(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*v = Text(strconv.FormatBool(b))
	return nil
}

// MarshalJSON writes the value back as a string, or null when absent
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Text)
}

// Pagination is the paging metadata of a property query page
type Pagination struct {
	Offset       int `json:"offset"`
	Limit        int `json:"limit"`
	TotalResults int `json:"totalResults"`
}

// PropertyPage is one page of a filtered property query
type PropertyPage struct {
	Pagination Pagination
	Records    []PropertyRecord
}

// PropertyQuery selects which elements and attribute paths a query returns
type PropertyQuery struct {
	ObjectIDs []int64
	Fields    []string
}

// Role is the author of a transcript message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation transcript
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Response represents the answer to a question about a design
type Response struct {
	DesignID  string `json:"design_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
}

// NewResponse stamps an answer with the current time
func NewResponse(designID, question, answer string) *Response {
	return &Response{
		DesignID:  designID,
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}
