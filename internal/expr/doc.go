// Package expr evaluates rule conditions against the active feature set.
//
// Two condition forms are understood:
//   - `name` or `!name`: true when the feature is enabled (or disabled).
//   - anything else is a CEL expression over the variable
//     `features` (list<string>), e.g. `"auth" in features && !("oauth" in features)`.
//
// The empty condition is always true.
package expr
