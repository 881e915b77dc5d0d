// Package alignment computes Dynamic Time Warping alignments between
// per-window embedding sequences and classifies pairs of videos as
// trimmed-from or pov relationships. All functions are pure and safe to
// call concurrently.
package alignment
