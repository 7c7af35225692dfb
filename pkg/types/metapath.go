package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Representation selects one of the renderings of a MetaPath.
type Representation string

const (
	// RepresentationList is the internal alternating label list.
	RepresentationList Representation = "list"
	// RepresentationUI is the Cypher-like pattern shown to raters and used in instance queries.
	RepresentationUI Representation = "UI"
	// RepresentationKey is the stable identity string.
	RepresentationKey Representation = "key"
)

const keySeparator = "|"

// MetaPath is an alternating sequence of node types and edge types
// (node, edge, node, ..., node) together with its structural value and an
// optional learned domain value.
//
// A MetaPath is immutable by convention once it has been handed to a
// ranking graph or an active-learning session; only the domain value is
// assigned later by scoring.
type MetaPath struct {
	labels          []string
	structuralValue float64
	domainValue     *float64
}

// labelPattern admits labels usable unquoted in a Cypher pattern.
var labelPattern = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*$`)

// NewMetaPath validates labels and builds a MetaPath.
func NewMetaPath(labels []string, structuralValue float64) (*MetaPath, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: empty label sequence", ErrInvalidMetaPath)
	}
	if len(labels)%2 == 0 {
		return nil, fmt.Errorf("%w: sequence %v must start and end on a node type", ErrInvalidMetaPath, labels)
	}
	for i, l := range labels {
		if strings.TrimSpace(l) == "" {
			return nil, fmt.Errorf("%w: empty label at position %d", ErrInvalidMetaPath, i)
		}
		if !labelPattern.MatchString(l) {
			return nil, fmt.Errorf("%w: label %q at position %d is not a plain identifier", ErrInvalidMetaPath, l, i)
		}
	}
	if structuralValue < 0 {
		return nil, fmt.Errorf("%w: structural value %f is negative", ErrInvalidMetaPath, structuralValue)
	}

	cp := make([]string, len(labels))
	copy(cp, labels)
	return &MetaPath{labels: cp, structuralValue: structuralValue}, nil
}

// MustMetaPath is NewMetaPath for fixtures and literals; it panics on invalid input.
func MustMetaPath(structuralValue float64, labels ...string) *MetaPath {
	mp, err := NewMetaPath(labels, structuralValue)
	if err != nil {
		panic(err)
	}
	return mp
}

// AsList returns a copy of the alternating label list.
func (m *MetaPath) AsList() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

// NodeTypes returns the node-type labels (even positions).
func (m *MetaPath) NodeTypes() []string {
	out := make([]string, 0, m.NumberNodeTypes())
	for i := 0; i < len(m.labels); i += 2 {
		out = append(out, m.labels[i])
	}
	return out
}

// EdgeTypes returns the edge-type labels (odd positions).
func (m *MetaPath) EdgeTypes() []string {
	out := make([]string, 0, len(m.labels)/2)
	for i := 1; i < len(m.labels); i += 2 {
		out = append(out, m.labels[i])
	}
	return out
}

// NumberNodeTypes returns how many node positions the path has.
func (m *MetaPath) NumberNodeTypes() int {
	return (len(m.labels) + 1) / 2
}

// Len returns the number of labels.
func (m *MetaPath) Len() int {
	return len(m.labels)
}

// StructuralValue returns the precomputed structural value.
func (m *MetaPath) StructuralValue() float64 {
	return m.structuralValue
}

// DomainValue returns the assigned domain value, if any.
func (m *MetaPath) DomainValue() (float64, bool) {
	if m.domainValue == nil {
		return 0, false
	}
	return *m.domainValue, true
}

// SetDomainValue assigns the learned domain value.
func (m *MetaPath) SetDomainValue(v float64) {
	m.domainValue = &v
}

// Key is the stable identity of the path: its labels joined by "|".
func (m *MetaPath) Key() string {
	return strings.Join(m.labels, keySeparator)
}

// Equal reports whether both paths have the same label sequence.
func (m *MetaPath) Equal(other *MetaPath) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.Key() == other.Key()
}

// UIRepresentation renders the path as a Cypher path pattern with the node
// variables n0..nk, e.g. (n0:Movie)-[:HAS_ACTOR]-(n1:Actor).
func (m *MetaPath) UIRepresentation() string {
	var sb strings.Builder
	for i, label := range m.labels {
		if i%2 == 0 {
			fmt.Fprintf(&sb, "(n%d:%s)", i/2, label)
		} else {
			fmt.Fprintf(&sb, "-[:%s]-", label)
		}
	}
	return sb.String()
}

// Representation returns the requested rendering as a string. The list form
// is rendered as JSON.
func (m *MetaPath) Representation(kind Representation) string {
	switch kind {
	case RepresentationUI:
		return m.UIRepresentation()
	case RepresentationKey:
		return m.Key()
	default:
		b, _ := json.Marshal(m.labels)
		return string(b)
	}
}

func (m *MetaPath) String() string {
	return m.Key()
}

var (
	uiNodePattern = regexp.MustCompile(`^\(n(\d+):([^()\[\]]+)\)`)
	uiEdgePattern = regexp.MustCompile(`^-\[:([^()\[\]]+)\]-`)
)

// ParseUIRepresentation reconstructs the label list from a UI rendering.
func ParseUIRepresentation(s string) ([]string, error) {
	rest := strings.TrimSpace(s)
	var labels []string
	expectNode := true
	for rest != "" {
		if expectNode {
			m := uiNodePattern.FindStringSubmatch(rest)
			if m == nil {
				return nil, fmt.Errorf("%w: expected node at %q", ErrInvalidMetaPath, rest)
			}
			if m[1] != fmt.Sprint(len(labels)/2) {
				return nil, fmt.Errorf("%w: node variable n%s out of sequence", ErrInvalidMetaPath, m[1])
			}
			labels = append(labels, m[2])
			rest = rest[len(m[0]):]
		} else {
			m := uiEdgePattern.FindStringSubmatch(rest)
			if m == nil {
				return nil, fmt.Errorf("%w: expected edge at %q", ErrInvalidMetaPath, rest)
			}
			labels = append(labels, m[1])
			rest = rest[len(m[0]):]
		}
		expectNode = !expectNode
	}
	if len(labels) == 0 || len(labels)%2 == 0 {
		return nil, fmt.Errorf("%w: pattern %q does not end on a node", ErrInvalidMetaPath, s)
	}
	return labels, nil
}

type metaPathJSON struct {
	MetaPath        []string `json:"metapath"`
	StructuralValue float64  `json:"structural_value"`
	DomainValue     *float64 `json:"domain_value,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m *MetaPath) MarshalJSON() ([]byte, error) {
	return json.Marshal(metaPathJSON{
		MetaPath:        m.labels,
		StructuralValue: m.structuralValue,
		DomainValue:     m.domainValue,
	})
}

// UnmarshalJSON implements json.Unmarshaler and applies NewMetaPath validation.
func (m *MetaPath) UnmarshalJSON(data []byte) error {
	var raw metaPathJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	mp, err := NewMetaPath(raw.MetaPath, raw.StructuralValue)
	if err != nil {
		return err
	}
	mp.domainValue = raw.DomainValue
	*m = *mp
	return nil
}
