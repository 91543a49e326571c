// Package workspace manages the scratch directory a run uses for files that
// do not exist on disk in their own right, such as members extracted from
// zip archives. The directory is removed when the run finishes.
package workspace
