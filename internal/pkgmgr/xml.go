package pkgmgr

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/bianoble/template-cleanup/internal/fsys"
)

// element is a matched XML element with its byte span in the source.
type element struct {
	start, end int64
	dependency string
	section    string
}

// removeSpans cuts each span out of data, widening it to whole lines when
// the element sits alone on its lines.
func removeSpans(data []byte, elems []element) []byte {
	out := data
	for i := len(elems) - 1; i >= 0; i-- {
		start, end := int(elems[i].start), int(elems[i].end)

		ls := bytes.LastIndexByte(out[:start], '\n') + 1
		le := bytes.IndexByte(out[end:], '\n')
		if le < 0 {
			le = len(out)
		} else {
			le += end + 1
		}
		if len(bytes.TrimSpace(out[ls:start])) == 0 && len(bytes.TrimSpace(out[end:le])) == 0 {
			start, end = ls, le
		}

		out = append(out[:start:start], out[end:]...)
	}
	return out
}

// visitFunc inspects a start element. It reports consumed when it read the
// element through to its end tag, and returns a non-nil element to mark it
// for removal.
type visitFunc func(d *xml.Decoder, se xml.StartElement, offset int64, stack []string) (el *element, consumed bool, err error)

// scanXML walks data and calls visit for every start element along with the
// stack of enclosing element names.
func scanXML(data []byte, visit visitFunc) ([]element, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = true

	var stack []string
	var found []element
	for {
		offset := d.InputOffset()
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el, consumed, err := visit(d, t, offset, stack)
			if err != nil {
				return nil, err
			}
			if el != nil {
				found = append(found, *el)
			}
			if !consumed {
				stack = append(stack, t.Name.Local)
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return found, nil
}

// skipElement consumes tokens up to and including the end of the current
// element and returns the offset just past it.
func skipElement(d *xml.Decoder) (int64, error) {
	if err := d.Skip(); err != nil {
		return 0, err
	}
	return d.InputOffset(), nil
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if strings.EqualFold(a.Name.Local, name) {
			return a.Value
		}
	}
	return ""
}

type nugetAdapter struct{}

// NuGet prunes <PackageReference Include="..."/> elements from *.csproj
// files. Package ids compare case-insensitively. NuGet has no separate
// dev section, so both lists are treated alike.
func NuGet() Adapter { return nugetAdapter{} }

func (nugetAdapter) Name() string { return "nuget" }

func (a nugetAdapter) Prune(ctx context.Context, fs fsys.FileSystem, req Request) (*Result, error) {
	files, err := manifests(fs, req, "*.csproj", "**/*.csproj")
	if err != nil {
		return nil, err
	}

	want := make(map[string]string)
	for _, dep := range append(append([]string{}, req.Deps...), req.DevDeps...) {
		want[strings.ToLower(dep)] = dep
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

		found, err := scanXML(data, func(d *xml.Decoder, se xml.StartElement, offset int64, _ []string) (*element, bool, error) {
			if se.Name.Local != "PackageReference" {
				return nil, false, nil
			}
			id := attr(se, "Include")
			if id == "" {
				id = attr(se, "Update")
			}
			dep, ok := want[strings.ToLower(id)]
			if !ok {
				return nil, false, nil
			}
			end, err := skipElement(d)
			if err != nil {
				return nil, true, err
			}
			return &element{start: offset, end: end, dependency: dep, section: "PackageReference"}, true, nil
		})
		if err != nil {
			return nil, &ManifestError{Manager: a.Name(), Path: manifest, Err: err}
		}
		if len(found) == 0 {
			continue
		}

		for _, el := range found {
			res.Removals = append(res.Removals, Removal{Dependency: el.dependency, Section: el.section, Manifest: manifest})
		}
		if err := writeManifest(fs, manifest, removeSpans(data, found), req.DryRun); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type mavenAdapter struct{}

// Maven prunes <dependency> elements from pom.xml. A name matches either
// "artifactId" or "groupId:artifactId". remove_deps matches any scope;
// remove_dev_deps matches only test-scoped dependencies. Plugin
// dependencies are never touched.
func Maven() Adapter { return mavenAdapter{} }

func (mavenAdapter) Name() string { return "maven" }

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Scope      string `xml:"scope"`
}

func (a mavenAdapter) Prune(ctx context.Context, fs fsys.FileSystem, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifest := "pom.xml"
	if req.Manifest != "" {
		manifest = fsys.Clean(req.Manifest)
	}
	data, ok, err := readManifest(fs, manifest)
	if err != nil || !ok {
		return &Result{}, err
	}

	match := func(dep pomDependency) (string, bool) {
		scope := strings.TrimSpace(dep.Scope)
		full := strings.TrimSpace(dep.GroupID) + ":" + strings.TrimSpace(dep.ArtifactID)
		short := strings.TrimSpace(dep.ArtifactID)
		for _, n := range req.Deps {
			if n == full || n == short {
				return n, true
			}
		}
		if scope == "test" {
			for _, n := range req.DevDeps {
				if n == full || n == short {
					return n, true
				}
			}
		}
		return "", false
	}

	found, err := scanXML(data, func(d *xml.Decoder, se xml.StartElement, offset int64, stack []string) (*element, bool, error) {
		if se.Name.Local != "dependency" || len(stack) == 0 || stack[len(stack)-1] != "dependencies" {
			return nil, false, nil
		}
		for _, s := range stack {
			if s == "plugin" {
				return nil, false, nil
			}
		}

		var dep pomDependency
		if err := d.DecodeElement(&dep, &se); err != nil {
			return nil, true, err
		}
		end := d.InputOffset()

		name, ok := match(dep)
		if !ok {
			return nil, true, nil
		}
		section := "dependencies"
		if s := strings.TrimSpace(dep.Scope); s != "" {
			section = "dependencies:" + s
		}
		return &element{start: offset, end: end, dependency: name, section: section}, true, nil
	})
	if err != nil {
		return nil, &ManifestError{Manager: a.Name(), Path: manifest, Err: err}
	}

	res := &Result{}
	if len(found) == 0 {
		return res, nil
	}
	for _, el := range found {
		res.Removals = append(res.Removals, Removal{Dependency: el.dependency, Section: el.section, Manifest: manifest})
	}
	if err := writeManifest(fs, manifest, removeSpans(data, found), req.DryRun); err != nil {
		return nil, err
	}
	return res, nil
}
