package config

import (
	"git.home.luguber.info/inful/catminer/internal/foundation/normalization"
)

// Format is the output serialization format.
type Format string

const (
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
)

var formatNormalizer = normalization.NewNormalizer(map[string]Format{
	"xml":  FormatXML,
	"json": FormatJSON,
}, FormatXML)

// ParseFormat normalizes a user supplied format name.
func ParseFormat(raw string) (Format, error) {
	return formatNormalizer.NormalizeWithError(raw)
}

// Formats lists the supported output formats.
func Formats() []string { return formatNormalizer.ValidKeys() }

// Ext returns the file extension (with dot) used for exported files.
func (f Format) Ext() string { return "." + string(f) }

// PathStyle selects how the automation script renders paths.
type PathStyle string

const (
	PathStyleAbsolute PathStyle = "absolute"
	PathStyleRelative PathStyle = "relative"
)

var pathStyleNormalizer = normalization.NewNormalizer(map[string]PathStyle{
	"absolute": PathStyleAbsolute,
	"abs":      PathStyleAbsolute,
	"relative": PathStyleRelative,
	"rel":      PathStyleRelative,
}, PathStyleAbsolute)

// ParsePathStyle normalizes a user supplied path style.
func ParsePathStyle(raw string) (PathStyle, error) {
	return pathStyleNormalizer.NormalizeWithError(raw)
}

// ExtractorKind selects the Document Extractor adapter.
type ExtractorKind string

const (
	ExtractorExec ExtractorKind = "exec"
	ExtractorNATS ExtractorKind = "nats"
)

var extractorNormalizer = normalization.NewNormalizer(map[string]ExtractorKind{
	"exec": ExtractorExec,
	"nats": ExtractorNATS,
}, ExtractorExec)

// ParseExtractorKind normalizes a user supplied extractor kind.
func ParseExtractorKind(raw string) (ExtractorKind, error) {
	return extractorNormalizer.NormalizeWithError(raw)
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

// NormalizeLogFormat maps raw input to a LogFormat, defaulting to text.
func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.Normalize(raw)
}
