package scaffold

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/manifest"
)

// Template names.
const (
	TemplateBasic = "basic"
	TemplateToken = "token"
	TemplateDefi  = "defi"
)

// Templates lists the available template sets.
var Templates = []string{TemplateBasic, TemplateToken, TemplateDefi}

// Defaults used when the caller leaves a field empty.
const (
	DefaultAuthor  = "Package Author"
	DefaultLicense = "Apache-2.0"
	DefaultVersion = "0.1.0"
)

// moduleToken in a template path is replaced by Data.Module.
const moduleToken = "__module__"

// Data holds all template variables available to scaffold templates.
type Data struct {
	Name        string // package name, e.g. "fixed-math"
	Module      string // derived Move identifier, e.g. "fixed_math"
	Author      string
	Description string
	License     string
	Version     string
	Year        int
}

// Result holds the outcome of a scaffold generation.
type Result struct {
	Template  string   `json:"template"`
	OutputDir string   `json:"outputDir"`
	Files     []string `json:"files"`
	Warnings  []string `json:"warnings,omitempty"`
}

// NewData creates a Data with derived fields populated.
func NewData(name, author string) *Data {
	if author == "" {
		author = DefaultAuthor
	}
	return &Data{
		Name:        name,
		Module:      ModuleName(name),
		Author:      author,
		Description: fmt.Sprintf("The %s Move package", name),
		License:     DefaultLicense,
		Version:     DefaultVersion,
		Year:        time.Now().Year(),
	}
}

// ModuleName turns a package name into a Move identifier.
func ModuleName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "-", "_"))
}

var funcs = template.FuncMap{"quote": strconv.Quote}

// Generate renders the named template set into outputDir. outputDir may
// exist only as an empty directory. The generated chainpkg.yaml is checked
// against the metadata schema; issues are returned as warnings.
func Generate(tmpl string, data *Data, outputDir string) (*Result, error) {
	if !slices.Contains(Templates, tmpl) {
		return nil, errs.New(errs.KindValidation, "unknown template %q (choose %s)", tmpl, strings.Join(Templates, ", ")).
			With("template", tmpl)
	}
	if err := manifest.ValidateName(data.Name); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "creating output directory")
	}
	existing, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "reading output directory")
	}
	if len(existing) > 0 {
		return nil, errs.New(errs.KindValidation, "output directory %s is not empty; remove existing files first", outputDir).
			With("dir", outputDir)
	}

	result := &Result{Template: tmpl, OutputDir: outputDir}
	root := path.Join("templates", tmpl)
	err = fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel := strings.TrimPrefix(p, root+"/")
		outName := strings.ReplaceAll(strings.TrimSuffix(rel, ".tmpl"), moduleToken, data.Module)
		if err := render(p, data, filepath.Join(outputDir, filepath.FromSlash(outName))); err != nil {
			return err
		}
		result.Files = append(result.Files, outName)
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "rendering template %s", tmpl)
	}
	slices.Sort(result.Files)

	// Validate the generated metadata against the JSON Schema.
	valResult, valErr := manifest.ValidateFile(filepath.Join(outputDir, manifest.MetadataFile))
	switch {
	case valErr != nil:
		result.Warnings = append(result.Warnings, fmt.Sprintf("could not validate %s: %v", manifest.MetadataFile, valErr))
	case !valResult.Valid:
		for _, issue := range valResult.Issues {
			result.Warnings = append(result.Warnings, issue.String())
		}
	}
	return result, nil
}

func render(src string, data *Data, dst string) error {
	raw, err := fs.ReadFile(templateFS, src)
	if err != nil {
		return err
	}
	tmpl, err := template.New(path.Base(src)).Funcs(funcs).Parse(string(raw))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", src, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("executing %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, buf.Bytes(), 0o644)
}
