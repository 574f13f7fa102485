// Package marketplace implements the authenticated client for the note
// trading site.
//
// The client:
//   - Keeps a cookie session and re-logs-in when a fetched page shows the
//     logged-out marker
//   - Fetches the listing snapshot from the paged JSON inventory endpoint
//   - Fetches note detail and loan profile pages one at a time behind a
//     rate limiter (the site tolerates only slow, spaced requests)
//
// Page layout parsing stays behind the DocumentParser and ProfileParser
// interfaces; this package only types and validates what parsers extract.
package marketplace
