// Package sanitizer normalizes user input before validation and storage.
//
// All functions are idempotent and never fail: invalid input comes back in a
// shape the validators will reject, usually unchanged or empty.
//
// Normalization includes:
//   - Free text: collapse whitespace, trim leading/trailing spaces
//   - Identifiers: trim surrounding whitespace only
//   - Enum values: trim and upper-case ("weekly" becomes "WEEKLY")
//   - Weekdays: trim and title-case ("MONDAY" becomes "Monday")
//   - Time zones: trim, collapse repeated slashes and underscores
package sanitizer
