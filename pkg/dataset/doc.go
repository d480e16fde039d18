// Package dataset defines the typed, column-oriented table shared by every
// uqtable component.
//
// This package contains:
//   - The closed set of column types (String, Double, Vector) with their
//     textual parse/format rules and runtime validation
//   - Header and Dataset, which enforce column-type consistency on every
//     inserted row
//   - The error kinds (FormatError, TypeError, ValidationError, IndexError)
//     returned by codecs and the model
//
// pkg/dataset imports only the standard library. Codecs, the partitioner and
// the CLI depend on it, never the reverse.
package dataset
