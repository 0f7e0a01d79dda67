package pkgmgr

import (
	"context"
	"strings"

	"github.com/wasilibs/go-re2"

	"github.com/bianoble/template-cleanup/internal/fsys"
)

type gradleAdapter struct{}

// Gradle prunes dependency declarations from build.gradle and
// build.gradle.kts, one line each:
//
//	implementation 'com.squareup.okhttp3:okhttp:4.12.0'
//	testImplementation("org.junit.jupiter:junit-jupiter:5.10.0")
//
// A name matches "group:artifact" or just "artifact". remove_deps applies to
// non-test configurations, remove_dev_deps to configurations whose name
// starts with "test" or "androidTest".
func Gradle() Adapter { return gradleAdapter{} }

func (gradleAdapter) Name() string { return "gradle" }

var gradleDependency = re2.MustCompile(`^\s*([A-Za-z][A-Za-z0-9_]*)\s*\(?\s*["']([^"':\s]+):([^"':\s]+)(:[^"']*)?["']`)

func (a gradleAdapter) Prune(ctx context.Context, fs fsys.FileSystem, req Request) (*Result, error) {
	files, err := manifests(fs, req, "build.gradle", "build.gradle.kts")
	if err != nil {
		return nil, err
	}

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

		lines := strings.Split(string(data), "\n")
		drop := make(map[int]bool)
		for i, line := range lines {
			m := gradleDependency.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			config, group, artifact := m[1], m[2], m[3]

			names := req.Deps
			if isTestConfiguration(config) {
				names = req.DevDeps
			}
			for _, n := range names {
				if n == group+":"+artifact || n == artifact {
					drop[i] = true
					res.Removals = append(res.Removals, Removal{Dependency: n, Section: config, Manifest: manifest})
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

func isTestConfiguration(config string) bool {
	return strings.HasPrefix(config, "test") || strings.HasPrefix(config, "androidTest")
}
