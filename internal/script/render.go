package script

import (
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/catminer/internal/config"
)

type renderer struct {
	dialect Dialect
	anchor  string // directory relative paths are rendered against, empty for absolute
}

func (r renderer) value(a arg) (string, error) {
	if !a.path || r.anchor == "" {
		return r.quote(a.value)
	}
	rel, err := filepath.Rel(r.anchor, a.value)
	if err != nil {
		// Different volume: nothing to be relative to.
		return r.quote(a.value)
	}
	if r.dialect == DialectBat {
		rel = strings.ReplaceAll(filepath.ToSlash(rel), "/", `\`)
		if strings.ContainsAny(rel, "\"\r\n\x00") {
			return "", ErrUnsafeValue
		}
		return `"%~dp0` + strings.ReplaceAll(rel, "%", "%%") + `"`, nil
	}
	q, err := r.quote(filepath.ToSlash(rel))
	if err != nil {
		return "", err
	}
	return `"$HERE"/` + q, nil
}

func (r renderer) quote(v string) (string, error) {
	if strings.ContainsAny(v, "\r\n\x00") {
		return "", ErrUnsafeValue
	}
	if r.dialect == DialectBat {
		if strings.Contains(v, `"`) {
			return "", ErrUnsafeValue
		}
		return `"` + strings.ReplaceAll(v, "%", "%%") + `"`, nil
	}
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'", nil
}

func (r renderer) script(cfg config.EffectiveConfig, words []string) string {
	profile := cfg.Profile()
	if profile == "" {
		profile = "default"
	}
	var lines []string
	switch r.dialect {
	case DialectBat:
		lines = []string{
			"@echo off",
			"REM catminer export run",
			fmt.Sprintf("REM settings profile: %s", profile),
			strings.Join(words, " ^\r\n    "),
			"exit /b %ERRORLEVEL%",
		}
		return strings.Join(lines, "\r\n") + "\r\n"
	default:
		lines = []string{
			"#!/bin/sh",
			"# catminer export run",
			fmt.Sprintf("# settings profile: %s", profile),
			"set -eu",
		}
		if r.anchor != "" {
			lines = append(lines, `HERE=$(cd "$(dirname "$0")" && pwd)`)
		}
		lines = append(lines, "exec "+strings.Join(words, " \\\n    "))
		return strings.Join(lines, "\n") + "\n"
	}
}
