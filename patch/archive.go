package patch

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// findZipModRoot locates the first path prefix inside the archive that
// contains a lovely.toml or a lovely/-prefixed path, per spec.md §4.F.2.
func findZipModRoot(zr *zip.Reader) (string, error) {
	var candidates []string
	for _, f := range zr.File {
		name := path.Clean(f.Name)
		if path.Base(name) == "lovely.toml" {
			candidates = append(candidates, path.Dir(name))
			continue
		}
		if idx := strings.Index(name, "/lovely/"); idx >= 0 {
			candidates = append(candidates, name[:idx])
		} else if strings.HasPrefix(name, "lovely/") {
			candidates = append(candidates, ".")
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no lovely.toml or lovely/ prefix found in archive")
	}
	sort.Strings(candidates)
	return candidates[0], nil
}

// zipManifestPaths mirrors the directory-mod collection rule: the mod
// root's own lovely.toml (if present), plus every *.toml under its
// lovely/ directory, sorted case-insensitively by basename.
func zipManifestPaths(zr *zip.Reader, modRoot string) []string {
	top := modRoot
	if top == "." {
		top = ""
	}
	lovelyToml := path.Join(top, "lovely.toml")
	lovelyDir := lovelyToml[:len(lovelyToml)-len("lovely.toml")] + "lovely/"

	haveTop := false
	var fromLovelyDir []string
	for _, f := range zr.File {
		name := path.Clean(f.Name)
		switch {
		case name == lovelyToml:
			haveTop = true
		case strings.HasPrefix(f.Name, lovelyDir) && strings.HasSuffix(strings.ToLower(f.Name), ".toml"):
			fromLovelyDir = append(fromLovelyDir, f.Name)
		}
	}
	sort.Slice(fromLovelyDir, func(i, j int) bool {
		return strings.ToLower(path.Base(fromLovelyDir[i])) < strings.ToLower(path.Base(fromLovelyDir[j]))
	})

	var out []string
	if haveTop {
		out = append(out, lovelyToml)
	}
	out = append(out, fromLovelyDir...)
	return out
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// extractedZipMod is the result of scanning one packaged mod's archive.
type extractedZipMod struct {
	root          string
	manifestPaths []string
	manifestText  map[string]string
	files         memSource
}

// extractZipMod opens the ZIP at zipPath, locates its mod root, and reads
// every file under that root into memory (a superset of what any Copy or
// Module patch inside it could reference), so the archive never needs to
// be reopened once loading completes.
func extractZipMod(zipPath string) (extractedZipMod, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return extractedZipMod{}, fmt.Errorf("patch: open archive %s: %w", zipPath, err)
	}
	defer zr.Close()

	root, err := findZipModRoot(&zr.Reader)
	if err != nil {
		return extractedZipMod{}, fmt.Errorf("patch: %s: %w", zipPath, err)
	}
	manifestPaths := zipManifestPaths(&zr.Reader, root)
	manifestText := make(map[string]string, len(manifestPaths))
	for _, p := range manifestPaths {
		b, err := readZipFile(&zr.Reader, p)
		if err != nil {
			return extractedZipMod{}, fmt.Errorf("patch: %s: read %s: %w", zipPath, p, err)
		}
		manifestText[p] = string(b)
	}

	prefix := root
	if prefix == "." {
		prefix = ""
	} else {
		prefix += "/"
	}
	files := make(map[string][]byte)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		b, err := readZipFile(&zr.Reader, f.Name)
		if err != nil {
			return extractedZipMod{}, fmt.Errorf("patch: %s: read %s: %w", zipPath, f.Name, err)
		}
		files[strings.TrimPrefix(f.Name, prefix)] = b
	}

	return extractedZipMod{root: root, manifestPaths: manifestPaths, manifestText: manifestText, files: memSource{files: files}}, nil
}
