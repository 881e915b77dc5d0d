// Package fingerprint computes content signatures for uploaded videos and
// runs the duplicate-check stage. A signature hashes sampled byte ranges of
// the raw object together with its size, so two uploads of the same file
// always collide while the full object is never downloaded.
package fingerprint
