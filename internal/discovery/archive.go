package discovery

import (
	"archive/zip"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/catminer/internal/logfields"
)

// archive yields the CAD members of a zip file. Members are extracted into
// the walker's workspace and placed, for output purposes, under a directory
// named after the archive stem.
func (s *walk) archive(full string) bool {
	rel, err := filepath.Rel(s.root, full)
	if err != nil {
		return s.yield(nil, &WalkError{Path: full, Err: err})
	}

	zr, err := zip.OpenReader(full)
	// Non-local member names are rejected one by one below.
	if errors.Is(err, zip.ErrInsecurePath) && zr != nil {
		err = nil
	}
	if err != nil {
		return s.yield(nil, &WalkError{Path: full, Err: fmt.Errorf("%w: %w", ErrArchiveUnreadable, err)})
	}
	defer func() { _ = zr.Close() }()

	members := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() {
			members = append(members, f)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })

	stemDir := strings.TrimSuffix(rel, filepath.Ext(rel))
	s.archives++
	slot := fmt.Sprintf("%04d", s.archives)

	for _, f := range members {
		if s.ctx.Err() != nil {
			return false
		}
		member, err := safeMemberName(f.Name)
		if err != nil {
			if !s.yield(nil, &WalkError{Path: full + "/" + f.Name, Err: err}) {
				return false
			}
			continue
		}
		if hiddenMember(member) {
			continue
		}
		if strings.EqualFold(path.Ext(member), ".zip") {
			slog.Debug("Skipping nested archive", logfields.Path(full), slog.String("member", member))
			continue
		}
		memberRel := filepath.Join(stemDir, filepath.FromSlash(member))
		ext := path.Ext(member)
		if !s.accept(ext, memberRel) {
			continue
		}

		c, err := s.extract(full, slot, member, memberRel, f)
		if err != nil {
			if !s.yield(nil, &WalkError{Path: full + "/" + member, Err: err}) {
				return false
			}
			continue
		}
		if !s.yield(c, nil) {
			return false
		}
	}
	return true
}

func (s *walk) extract(archive, slot, member, memberRel string, f *zip.File) (*CandidateFile, error) {
	ws, err := s.workspace()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchiveUnreadable, err)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchiveUnreadable, err)
	}
	defer func() { _ = rc.Close() }()

	source, err := ws.WriteFile(slot+"/"+member, rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchiveUnreadable, err)
	}

	identity, err := NormalizePath(filepath.Join(archive, filepath.FromSlash(member)))
	if err != nil {
		return nil, err
	}
	slog.Debug("Extracted archive member", logfields.Path(archive), slog.String("member", member))

	ext := path.Ext(member)
	return &CandidateFile{
		Path:       identity,
		SourcePath: source,
		RelPath:    memberRel,
		Ext:        ext,
		Kind:       KindOf(ext),
		ModTime:    f.Modified,
		Size:       int64(f.UncompressedSize64), // #nosec G115 -- sizes beyond int64 are not real archives
		Archive:    archive,
		Member:     member,
	}, nil
}

// safeMemberName cleans a zip member name and rejects names that would
// escape the archive root.
func safeMemberName(name string) (string, error) {
	slashed := strings.ReplaceAll(name, "\\", "/")
	clean := path.Clean(slashed)
	if strings.HasPrefix(slashed, "/") || clean == ".." || strings.HasPrefix(clean, "../") ||
		filepath.VolumeName(filepath.FromSlash(slashed)) != "" || (len(clean) > 1 && clean[1] == ':') {
		return "", fmt.Errorf("%w: %s", ErrUnsafeArchiveMember, name)
	}
	return clean, nil
}

func hiddenMember(member string) bool {
	for _, part := range strings.Split(member, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
