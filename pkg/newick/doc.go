// Package newick parses and serializes Newick-format trees and reroots
// them at the midpoint of their longest leaf-to-leaf path. It exists so
// the pipeline's tests/ output-equivalence checks have a real tree
// format to round-trip against; it is not a phylogenetics library.
package newick
