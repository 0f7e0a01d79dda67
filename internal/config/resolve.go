package config

import (
	"fmt"
	"strings"
)

// ResolveRules flattens profile into an ordered rule list: the extends chain
// is walked depth-first with ancestor rules first, then every
// conditional_rules set is appended in feature-name order. A conditional
// rule without its own condition is gated on its feature key.
//
// Rules without an id are assigned "<type>-<n>", counting per type in
// resolved order. Duplicate ids are an error.
func (c *Config) ResolveRules(profile string) ([]Rule, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	chain, err := c.extendsChain(profile)
	if err != nil {
		return nil, err
	}

	var rules []Rule
	for i := len(chain) - 1; i >= 0; i-- {
		rules = append(rules, c.Profiles[chain[i]].Rules...)
	}

	for _, feature := range c.FeatureNames() {
		for _, r := range c.ConditionalRules[feature] {
			if r.Condition == "" {
				r.Condition = feature
			}
			rules = append(rules, r)
		}
	}

	if err := assignIDs(rules); err != nil {
		return nil, err
	}

	return rules, nil
}

// extendsChain returns profile followed by its ancestors.
func (c *Config) extendsChain(profile string) ([]string, error) {
	var chain []string
	visited := make(map[string]bool)

	for name, child := profile, ""; name != ""; {
		if visited[name] {
			return nil, &ConfigError{Err: fmt.Errorf("%w: %s -> %s", ErrExtendsCycle, strings.Join(chain, " -> "), name)}
		}

		p, ok := c.Profiles[name]
		if !ok {
			if child != "" {
				return nil, &ConfigError{Err: fmt.Errorf("%w: '%s' (extended by '%s')", ErrProfileNotFound, name, child)}
			}
			return nil, &ConfigError{Err: fmt.Errorf("%w: '%s' (available: %s)", ErrProfileNotFound, name, strings.Join(c.ProfileNames(), ", "))}
		}

		visited[name] = true
		chain = append(chain, name)
		child, name = name, p.Extends
	}

	return chain, nil
}

func assignIDs(rules []Rule) error {
	taken := make(map[string]bool, len(rules))
	var dups []string
	for _, r := range rules {
		if r.ID == "" {
			continue
		}
		if taken[r.ID] {
			dups = append(dups, r.ID)
		}
		taken[r.ID] = true
	}
	if len(dups) > 0 {
		return &ConfigError{Err: fmt.Errorf("%w: %s", ErrDuplicateRuleID, strings.Join(dups, ", "))}
	}

	counters := make(map[string]int)
	for i := range rules {
		if rules[i].ID != "" {
			continue
		}
		for {
			counters[rules[i].Type]++
			id := fmt.Sprintf("%s-%d", rules[i].Type, counters[rules[i].Type])
			if !taken[id] {
				rules[i].ID = id
				taken[id] = true
				break
			}
		}
	}

	return nil
}
