// Package torguapi builds JSON:API replies for paginated result sets.
//
// Handlers read the page parameters from the query with GetPageParameters, fetch their
// records, compute links and meta with MakeLinksAndMeta and finally wrap everything with
// Result. Failures are reported with HTTPError. Replies carry the CORS headers for
// read-only public APIs.
package torguapi
