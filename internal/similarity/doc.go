// Package similarity answers nearest-neighbor queries over whole-clip
// embeddings. The default index is an exact linear scan; callers depend on
// the Index interface so an approximate index can replace it without
// touching call sites.
package similarity
