package policyopa

import (
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	cryptoinfra "sealtrail/internal/infra/crypto"
)

var (
	ignoredDirs     = []string{"vendor", "__MACOSX"}
	ignoredSuffixes = []string{"~", ".swp", ".zip", ".tar.gz", ".bundle"}
	manifestFiles   = []string{"data.json", "manifest.json"}
)

// ComputeBundleHashFromPath digests the rego sources and data documents of
// a bundle directory. Editor droppings and vendored trees do not count.
func ComputeBundleHashFromPath(dir string) (string, error) {
	return ComputeBundleHashFromFS(os.DirFS(dir), ".")
}

// ComputeBundleHashFromFS hashes the canonical JSON listing
// {"files":[{"path","sha256"}...]} ordered by path.
func ComputeBundleHashFromFS(fsys fs.FS, root string) (string, error) {
	digests := map[string]string{}
	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || slices.Contains(ignoredDirs, name) {
				return fs.SkipDir
			}
			return nil
		}
		if !countsTowardHash(name) {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		digests[path.Clean(p)] = cryptoinfra.SHA256Hex(data)
		return nil
	}
	if err := fs.WalkDir(fsys, root, walk); err != nil {
		return "", err
	}

	paths := make([]string, 0, len(digests))
	for p := range digests {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	files := make([]any, len(paths))
	for i, p := range paths {
		files[i] = map[string]any{"path": p, "sha256": digests[p]}
	}
	canonical, err := cryptoinfra.CanonicalizeAny(map[string]any{"files": files})
	if err != nil {
		return "", err
	}
	return cryptoinfra.SHA256Hex(canonical), nil
}

func countsTowardHash(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	for _, suffix := range ignoredSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	return strings.HasSuffix(name, ".rego") || slices.Contains(manifestFiles, name)
}
