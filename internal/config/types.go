package config

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Rule types.
const (
	TypeFileGlobDelete   = "file_glob_delete"
	TypeBlockMarkers     = "block_markers"
	TypeLineTag          = "line_tag"
	TypeConditionalBlock = "conditional_block"
	TypePruneEmpty       = "prune_empty"
	TypePackagePrune     = "package_prune"
	TypeCustom           = "custom"
)

// RuleTypes lists every accepted rule type.
var RuleTypes = []string{
	TypeFileGlobDelete,
	TypeBlockMarkers,
	TypeLineTag,
	TypeConditionalBlock,
	TypePruneEmpty,
	TypePackagePrune,
	TypeCustom,
}

// DefaultProfile is used when no profile is requested.
const DefaultProfile = "default"

// Config represents a template-cleanup.yaml file.
type Config struct {
	Profiles         map[string]Profile       `yaml:"profiles" json:"profiles"`
	Markers          Markers                  `yaml:"markers,omitempty" json:"markers"`
	CommentSyntax    map[string]CommentSyntax `yaml:"comment_syntax,omitempty" json:"commentSyntax,omitempty"`
	ConditionalRules map[string][]Rule        `yaml:"conditional_rules,omitempty" json:"conditionalRules,omitempty"`
	Features         []string                 `yaml:"features,omitempty" json:"features,omitempty"`
}

// Profile is a named, inheritable bundle of rules.
type Profile struct {
	Extends string `yaml:"extends,omitempty" json:"extends,omitempty"`
	Rules   []Rule `yaml:"rules" json:"rules"`
}

// Rule is one declarative cleanup step. Fields beyond the common ones are
// read only by the handler for Type.
type Rule struct {
	ID        string   `yaml:"id,omitempty" json:"id,omitempty"`
	Type      string   `yaml:"type" json:"type"`
	Glob      string   `yaml:"glob,omitempty" json:"glob,omitempty"`
	Globs     []string `yaml:"globs,omitempty" json:"globs,omitempty"`
	Include   []string `yaml:"include,omitempty" json:"include,omitempty"`
	Exclude   []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Condition string   `yaml:"condition,omitempty" json:"condition,omitempty"`

	// block_markers, conditional_block
	Marker string `yaml:"marker,omitempty" json:"marker,omitempty"`

	// package_prune
	Manager       string   `yaml:"manager,omitempty" json:"manager,omitempty"`
	Manifest      string   `yaml:"manifest,omitempty" json:"manifest,omitempty"`
	RemoveDeps    []string `yaml:"remove_deps,omitempty" json:"removeDeps,omitempty"`
	RemoveDevDeps []string `yaml:"remove_dev_deps,omitempty" json:"removeDevDeps,omitempty"`

	// custom
	Module  string         `yaml:"module,omitempty" json:"module,omitempty"`
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// Patterns returns glob followed by globs.
func (r Rule) Patterns() []string {
	var out []string
	if r.Glob != "" {
		out = append(out, r.Glob)
	}
	return append(out, r.Globs...)
}

// MarkerPair delimits a block.
type MarkerPair struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// Markers holds the named block marker pairs plus the distinguished line tag.
// In YAML both live in one mapping:
//
//	markers:
//	  template_only: {start: "TEMPLATE-ONLY:START", end: "TEMPLATE-ONLY:END"}
//	  line_tag: "@template-only"
type Markers struct {
	Blocks  map[string]MarkerPair `json:"blocks,omitempty"`
	LineTag string                `json:"lineTag,omitempty"`
}

func (m *Markers) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: markers must be a mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]

		if key == "line_tag" {
			switch val.Kind {
			case yaml.ScalarNode:
				m.LineTag = val.Value
			case yaml.MappingNode:
				var v struct {
					Tag   string `yaml:"tag"`
					Start string `yaml:"start"`
				}
				if err := val.Decode(&v); err != nil {
					return err
				}
				m.LineTag = v.Tag
				if m.LineTag == "" {
					m.LineTag = v.Start
				}
			default:
				return fmt.Errorf("line %d: markers.line_tag must be a string", val.Line)
			}
			continue
		}

		var pair MarkerPair
		if err := val.Decode(&pair); err != nil {
			return fmt.Errorf("line %d: markers.%s: %w", val.Line, key, err)
		}
		if m.Blocks == nil {
			m.Blocks = make(map[string]MarkerPair)
		}
		m.Blocks[key] = pair
	}

	return nil
}

// CommentSyntax is either a single-line comment token or a block comment
// pair. YAML accepts "//", ["/*", "*/"] or {start: "/*", end: "*/"}.
type CommentSyntax struct {
	Line  string `json:"line,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// IsBlock reports whether the syntax is a start/end pair.
func (c CommentSyntax) IsBlock() bool {
	return c.Start != "" || c.End != ""
}

func (c *CommentSyntax) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		c.Line = node.Value
		return nil
	case yaml.SequenceNode:
		var pair []string
		if err := node.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("line %d: block comment syntax needs exactly [start, end], got %d elements", node.Line, len(pair))
		}
		c.Start, c.End = pair[0], pair[1]
		return nil
	case yaml.MappingNode:
		var v struct {
			Line  string `yaml:"line"`
			Start string `yaml:"start"`
			End   string `yaml:"end"`
		}
		if err := node.Decode(&v); err != nil {
			return err
		}
		c.Line, c.Start, c.End = v.Line, v.Start, v.End
		return nil
	}
	return fmt.Errorf("line %d: comment syntax must be a string, a [start, end] pair or a mapping", node.Line)
}

// ProfileNames returns the configured profile names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FeatureNames returns the conditional_rules feature keys, sorted.
func (c *Config) FeatureNames() []string {
	names := make([]string, 0, len(c.ConditionalRules))
	for name := range c.ConditionalRules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
