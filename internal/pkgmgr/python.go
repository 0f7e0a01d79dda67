package pkgmgr

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/wasilibs/go-re2"

	"github.com/bianoble/template-cleanup/internal/fsys"
)

type pipAdapter struct{}

// Pip prunes requirements files. Without an explicit manifest it edits every
// requirements*.txt at the root and under requirements/.
func Pip() Adapter { return pipAdapter{} }

func (pipAdapter) Name() string { return "pip" }

func (a pipAdapter) Prune(ctx context.Context, fs fsys.FileSystem, req Request) (*Result, error) {
	files, err := manifests(fs, req, "requirements*.txt", "requirements/*.txt")
	if err != nil {
		return nil, err
	}

	matchers := requirementMatchers(append(append([]string{}, req.Deps...), req.DevDeps...))

	res := &Result{}
	for _, manifest := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, ok, err := readManifest(fs, manifest)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		section := strings.TrimSuffix(path.Base(manifest), path.Ext(manifest))

		lines := strings.Split(string(data), "\n")
		drop := make(map[int]bool)
		for i, line := range lines {
			for _, m := range matchers {
				if m.re.MatchString(line) {
					drop[i] = true
					res.Removals = append(res.Removals, Removal{Dependency: m.name, Section: section, Manifest: manifest})
					break
				}
			}
		}
		if len(drop) == 0 {
			continue
		}
		if err := writeManifest(fs, manifest, []byte(dropLines(string(data), drop)), req.DryRun); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type nameMatcher struct {
	name string
	re   *re2.Regexp
}

// requirementMatchers builds one matcher per name for requirement specifier
// lines such as "Django[bcrypt]>=4.2 ; python_version>'3.8'".
func requirementMatchers(names []string) []nameMatcher {
	out := make([]nameMatcher, 0, len(names))
	for _, n := range names {
		out = append(out, nameMatcher{
			name: n,
			re:   re2.MustCompile(`^\s*` + pythonNamePattern(n) + `\s*(\[[^\]]*\])?\s*($|[=<>!~;@#\s])`),
		})
	}
	return out
}

type poetryAdapter struct{}

// Poetry prunes pyproject.toml. Regular dependencies are removed from
// [tool.poetry.dependencies]; dev dependencies from
// [tool.poetry.dev-dependencies] and every [tool.poetry.group.<name>.dependencies].
func Poetry() Adapter { return poetryAdapter{} }

func (poetryAdapter) Name() string { return "poetry" }

var tableHeader = re2.MustCompile(`^\s*\[([^\[\]]+)\]\s*(#.*)?$`)

func (a poetryAdapter) Prune(ctx context.Context, fs fsys.FileSystem, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifest := "pyproject.toml"
	if req.Manifest != "" {
		manifest = fsys.Clean(req.Manifest)
	}
	data, ok, err := readManifest(fs, manifest)
	if err != nil || !ok {
		return &Result{}, err
	}

	var doc map[string]any
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, &ManifestError{Manager: a.Name(), Path: manifest, Err: err}
	}

	keyMatchers := func(names []string) []nameMatcher {
		out := make([]nameMatcher, 0, len(names))
		for _, n := range names {
			out = append(out, nameMatcher{
				name: n,
				re:   re2.MustCompile(`^\s*["']?` + pythonNamePattern(n) + `["']?\s*=`),
			})
		}
		return out
	}
	deps, devDeps := keyMatchers(req.Deps), keyMatchers(req.DevDeps)

	lines := strings.Split(string(data), "\n")
	drop := make(map[int]bool)
	res := &Result{}
	table := ""

	for i := 0; i < len(lines); i++ {
		if m := tableHeader.FindStringSubmatch(lines[i]); m != nil {
			table = strings.TrimSpace(m[1])
			continue
		}

		var matchers []nameMatcher
		switch {
		case table == "tool.poetry.dependencies":
			matchers = deps
		case table == "tool.poetry.dev-dependencies", isPoetryGroup(table):
			matchers = devDeps
		default:
			continue
		}

		for _, m := range matchers {
			if !m.re.MatchString(lines[i]) {
				continue
			}
			// Multi-line inline tables and arrays run until balanced.
			start, depth := i, bracketDepth(lines[i])
			for depth > 0 && i+1 < len(lines) {
				i++
				depth += bracketDepth(lines[i])
			}
			for j := start; j <= i; j++ {
				drop[j] = true
			}
			res.Removals = append(res.Removals, Removal{Dependency: m.name, Section: table, Manifest: manifest})
			break
		}
	}

	if len(drop) == 0 {
		return res, nil
	}

	out := dropLines(string(data), drop)
	if _, err := toml.Decode(out, &map[string]any{}); err != nil {
		return nil, &ManifestError{Manager: a.Name(), Path: manifest, Err: fmt.Errorf("rewritten manifest is invalid: %w", err)}
	}
	if err := writeManifest(fs, manifest, []byte(out), req.DryRun); err != nil {
		return nil, err
	}
	return res, nil
}

func isPoetryGroup(table string) bool {
	rest, ok := strings.CutPrefix(table, "tool.poetry.group.")
	return ok && strings.HasSuffix(rest, ".dependencies") && rest != ".dependencies"
}
