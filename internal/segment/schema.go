package segment

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/solatis/x12keeper/internal/types"
)

// ElementDef names one position of a segment type.
type ElementDef struct {
	Name  string      `yaml:"name"`
	Index int         `yaml:"index"`
	Type  ElementType `yaml:"type"`
}

// Schema maps a segment tag to the definitions of its named positions.
// Tags without an entry build generic segments (tag+index access only).
type Schema map[string][]ElementDef

// schemaFile is the YAML layout read by ParseSchema:
//
//	segments:
//	  N1:
//	    - {name: EntityIdentifierCode, index: 1, type: ID}
//	    - {name: Name, index: 2}
type schemaFile struct {
	Segments map[string][]ElementDef `yaml:"segments"`
}

// Envelope segment definitions shared by every X12 transaction set.
var envelopeSchema = Schema{
	"ISA": {
		{Name: "AuthorizationInformationQualifier", Index: 1, Type: TypeIdentifier},
		{Name: "AuthorizationInformation", Index: 2, Type: TypeAlphanumeric},
		{Name: "SecurityInformationQualifier", Index: 3, Type: TypeIdentifier},
		{Name: "SecurityInformation", Index: 4, Type: TypeAlphanumeric},
		{Name: "InterchangeSenderIDQualifier", Index: 5, Type: TypeIdentifier},
		{Name: "InterchangeSenderID", Index: 6, Type: TypeAlphanumeric},
		{Name: "InterchangeReceiverIDQualifier", Index: 7, Type: TypeIdentifier},
		{Name: "InterchangeReceiverID", Index: 8, Type: TypeAlphanumeric},
		{Name: "InterchangeDate", Index: 9, Type: TypeDate},
		{Name: "InterchangeTime", Index: 10, Type: TypeTime},
		{Name: "RepetitionSeparator", Index: 11, Type: TypeAlphanumeric},
		{Name: "InterchangeControlVersionNumber", Index: 12, Type: TypeIdentifier},
		{Name: "InterchangeControlNumber", Index: 13, Type: TypeNumeric},
		{Name: "AcknowledgmentRequested", Index: 14, Type: TypeIdentifier},
		{Name: "UsageIndicator", Index: 15, Type: TypeIdentifier},
		{Name: "ComponentElementSeparator", Index: 16, Type: TypeAlphanumeric},
	},
	"GS": {
		{Name: "FunctionalIdentifierCode", Index: 1, Type: TypeIdentifier},
		{Name: "ApplicationSenderCode", Index: 2, Type: TypeAlphanumeric},
		{Name: "ApplicationReceiverCode", Index: 3, Type: TypeAlphanumeric},
		{Name: "Date", Index: 4, Type: TypeDate},
		{Name: "Time", Index: 5, Type: TypeTime},
		{Name: "GroupControlNumber", Index: 6, Type: TypeNumeric},
		{Name: "ResponsibleAgencyCode", Index: 7, Type: TypeIdentifier},
		{Name: "VersionReleaseIndustryIdentifierCode", Index: 8, Type: TypeAlphanumeric},
	},
	"ST": {
		{Name: "TransactionSetIdentifierCode", Index: 1, Type: TypeIdentifier},
		{Name: "TransactionSetControlNumber", Index: 2, Type: TypeAlphanumeric},
		{Name: "ImplementationConventionReference", Index: 3, Type: TypeAlphanumeric},
	},
	"SE": {
		{Name: "NumberOfIncludedSegments", Index: 1, Type: TypeNumeric},
		{Name: "TransactionSetControlNumber", Index: 2, Type: TypeAlphanumeric},
	},
	"GE": {
		{Name: "NumberOfTransactionSetsIncluded", Index: 1, Type: TypeNumeric},
		{Name: "GroupControlNumber", Index: 2, Type: TypeNumeric},
	},
	"IEA": {
		{Name: "NumberOfIncludedFunctionalGroups", Index: 1, Type: TypeNumeric},
		{Name: "InterchangeControlNumber", Index: 2, Type: TypeNumeric},
	},
}

// DefaultSchema returns a copy of the built-in envelope definitions
// (ISA, GS, ST, SE, GE, IEA).
func DefaultSchema() Schema {
	return Schema{}.Merge(envelopeSchema)
}

// Merge returns a new schema holding sc's tags overlaid with other's.
// A tag present in other replaces sc's definitions for that tag entirely.
func (sc Schema) Merge(other Schema) Schema {
	out := make(Schema, len(sc)+len(other))
	for tag, defs := range sc {
		out[tag] = append([]ElementDef(nil), defs...)
	}
	for tag, defs := range other {
		out[tag] = append([]ElementDef(nil), defs...)
	}
	return out
}

// Tags returns the defined tags in sorted order.
func (sc Schema) Tags() []string {
	tags := make([]string, 0, len(sc))
	for tag := range sc {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Validate checks every definition: non-empty tag and names, index >= 1,
// known type, and names unique within a tag.
func (sc Schema) Validate() error {
	for tag, defs := range sc {
		if tag == "" {
			return fmt.Errorf("%w: empty segment tag", types.ErrInvalidSchema)
		}
		seen := make(map[string]bool, len(defs))
		for _, def := range defs {
			if def.Name == "" {
				return fmt.Errorf("%w: %s: empty field name at index %d", types.ErrInvalidSchema, tag, def.Index)
			}
			if def.Index < 1 {
				return fmt.Errorf("%w: %s.%s: index %d below 1", types.ErrInvalidSchema, tag, def.Name, def.Index)
			}
			if !def.Type.Valid() {
				return fmt.Errorf("%w: %s.%s: unknown type %q", types.ErrInvalidSchema, tag, def.Name, def.Type)
			}
			if seen[def.Name] {
				return fmt.Errorf("%w: %s: duplicate field name %s", types.ErrInvalidSchema, tag, def.Name)
			}
			seen[def.Name] = true
		}
	}
	return nil
}

// Build constructs a segment from raw elements, registering the names and
// element types defined for its tag.
func (sc Schema) Build(elements []string) (*Segment, error) {
	if len(elements) == 0 || elements[0] == "" {
		return nil, types.ErrEmptySegmentID
	}

	defs := sc[elements[0]]
	names := make(NameIndex, len(defs))
	for _, def := range defs {
		names[def.Name] = def.Index
	}

	s, err := NewNamed(elements, names)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		if def.Type != "" {
			s.kinds[def.Index] = def.Type
		}
	}
	return s, nil
}

// ParseSchema decodes YAML segment definitions and validates them.
func ParseSchema(data []byte) (Schema, error) {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidSchema, err)
	}
	sc := Schema(file.Segments)
	if sc == nil {
		sc = Schema{}
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// LoadSchema reads a YAML schema file and overlays it on DefaultSchema.
// An empty path returns DefaultSchema unchanged.
func LoadSchema(path string) (Schema, error) {
	if path == "" {
		return DefaultSchema(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	extra, err := ParseSchema(data)
	if err != nil {
		return nil, err
	}
	return DefaultSchema().Merge(extra), nil
}
