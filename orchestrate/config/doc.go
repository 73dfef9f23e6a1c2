// Package config provides configuration structures for graph execution and
// the worker pool that dispatches concurrent node calls.
//
// Configs exist only during initialization. Builders and executors read
// them once and keep the resolved values (observer instances, limits) in
// their own fields.
//
// # Configuration Merging
//
// All configuration types support a Merge pattern so loaded configs layer
// over defaults:
//
//	cfg := config.DefaultGraphConfig("routing")
//	var loaded config.GraphConfig
//	json.Unmarshal(data, &loaded)
//	cfg.Merge(&loaded)
//
// Merge semantics by field type:
//
//   - Strings: Merge if source is non-empty
//   - Integers and durations: Merge if source is greater than zero
//   - Pointers: Merge if source is non-nil
//   - Booleans with false defaults: Merge if source is true
//
// # Boolean Fields with Non-False Defaults
//
// Where the default is true (ParallelConfig.FailFast), the field is a *bool
// named with a "Nil" suffix and read through an accessor, so a partial JSON
// document that omits the key keeps the default:
//
//	// {"max_workers": 4}
//	cfg.FailFastNil == nil  // FailFast() returns true
package config
