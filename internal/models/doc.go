// Package models defines the persisted domain models for split-slice.
//
// # Models
//
//   - Settlement: one pending payment produced by the most recent netting run
//     over a scope (or inserted out of band by a reverse-expense action)
//   - Scope: the boundary over which netting is computed and replaced, either
//     a group or a pair of users
//   - Party: display information for an opaque party ID
//
// # Design Principles
//
// 1. **Opaque parties**: payers and receivers are stable party ID strings; the
// display name lives in Party and is resolved outside the netting engine
// 2. **Exact money**: amounts are decimal values rounded to cents, never float64
// 3. **No pointers between records**: relationships use ID strings
package models
