package config

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// marshalStored encodes cfg for the on-disk cache. Rule options keep their
// YAML scalar types through the round trip: integral floats are written with
// a fractional part so unmarshalStored can tell them from integers.
func marshalStored(cfg *Config) ([]byte, error) {
	out := *cfg
	if cfg.Profiles != nil {
		out.Profiles = make(map[string]Profile, len(cfg.Profiles))
		for name, p := range cfg.Profiles {
			p.Rules = mapRuleOptions(p.Rules, tagFloats)
			out.Profiles[name] = p
		}
	}
	if cfg.ConditionalRules != nil {
		out.ConditionalRules = make(map[string][]Rule, len(cfg.ConditionalRules))
		for feature, rules := range cfg.ConditionalRules {
			out.ConditionalRules[feature] = mapRuleOptions(rules, tagFloats)
		}
	}
	return json.Marshal(&out)
}

// unmarshalStored decodes a payload written by marshalStored. Option numbers
// come back as int when integral and float64 otherwise, as yaml.v3 decodes
// them.
func unmarshalStored(payload []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	for name, p := range cfg.Profiles {
		p.Rules = mapRuleOptions(p.Rules, untagNumbers)
		cfg.Profiles[name] = p
	}
	for feature, rules := range cfg.ConditionalRules {
		cfg.ConditionalRules[feature] = mapRuleOptions(rules, untagNumbers)
	}
	return &cfg, nil
}

// mapRuleOptions returns a copy of rules with fn applied to every option value.
func mapRuleOptions(rules []Rule, fn func(any) any) []Rule {
	if rules == nil {
		return nil
	}
	out := make([]Rule, len(rules))
	for i, r := range rules {
		if r.Options != nil {
			opts := make(map[string]any, len(r.Options))
			for k, v := range r.Options {
				opts[k] = fn(v)
			}
			r.Options = opts
		}
		out[i] = r
	}
	return out
}

func tagFloats(v any) any {
	switch v := v.(type) {
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return json.Number(strconv.FormatFloat(v, 'f', 1, 64))
		}
		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = tagFloats(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = tagFloats(e)
		}
		return out
	}
	return v
}

func untagNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		s := v.String()
		if !strings.ContainsAny(s, ".eE") {
			if n, err := strconv.ParseInt(s, 10, 0); err == nil {
				return int(n)
			}
			if n, err := strconv.ParseUint(s, 10, 64); err == nil {
				return n
			}
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		for k, e := range v {
			v[k] = untagNumbers(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = untagNumbers(e)
		}
		return v
	}
	return v
}
