// Package pagination bridges page-number addressing onto the cursor-only
// Shopify catalog API.
//
// The upstream supports exactly one navigation primitive: "given a cursor,
// return the next page and a new cursor". Callers want "give me page N".
// The bridge reconciles the two by memoizing every cursor it discovers in
// the catalog cache, keyed by (tenant, filter fingerprint, page). A warm
// cache turns any page request into a single upstream call; a cold one
// walks forward from the last known cursor, caching each hop so the walk
// is never repeated.
//
// Cold-start cost is O(page) upstream calls in the worst case. The bridge
// does not pre-warm cursor chains in the background; callers who need that
// can issue ordinary GetPage calls ahead of demand.
package pagination
