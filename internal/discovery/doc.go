// Package discovery finds CAD design files (the .CAT* family) under an input
// root, optionally looking inside zip archives, and yields them lazily in a
// deterministic order.
package discovery
