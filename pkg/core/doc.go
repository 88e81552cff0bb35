// Package core defines the shared language of the leapbuild system.
//
// This package contains:
//   - Domain entities (Model, Shape, ValidationEvent, ProjectionResult)
//   - Configuration types (BuildConfig, ProjectionConfig, TransformConfig)
//   - Service interfaces (Transformer, Plugin, Assembler, Manifest)
//   - The error taxonomy shared by the engine and its callers
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
