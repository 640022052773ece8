// Package catalog lists and searches everything the registry knows about.
//
// A catalog is fetched with a single registry read and searched locally:
// text queries are matched fuzzily against package names, descriptions and
// tags, then the structured filters (kind, minimum endorsements, limit) are
// applied to the ranked list. Records without a name or a version are never
// shown and are counted in Results.Skipped.
package catalog
