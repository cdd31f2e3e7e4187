// Package testutil provides test helpers for chatarchive tests.
//
// The package is organized into focused files:
//   - assert.go: assertion helpers (MustNoErr, AssertEqualSlices, etc.)
//   - store_helpers.go: database test setup (NewTestStore, SeedMessages)
//   - fs_helpers.go: filesystem operations (WriteFile, ReadFile, MustExist)
//   - archive_helpers.go: compressed fixtures (WriteGzip, WriteZstd)
//   - builders.go: message builders
package testutil
