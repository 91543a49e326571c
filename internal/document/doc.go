// Package document models the structured content the extractor returns for
// one CAD document: a rooted tree of named nodes carrying typed attributes.
package document
