package ledger

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// manifestSchema constrains package code. A package is a CUE document
// naming the native blueprints it exposes.
const manifestSchema = `
#Package: {
	name:     string & =~"^[a-z][a-z0-9_-]*$"
	version?: string
	blueprints: [=~"^[A-Z][A-Za-z0-9_]*$"]: {
		native:       string & !=""
		description?: string
	}
}
`

// PackageManifest is the parsed form of package code.
type PackageManifest struct {
	Name       string
	Version    string
	Blueprints []BlueprintRef
}

// BlueprintRef binds a blueprint name to a native implementation ID.
type BlueprintRef struct {
	Name        string
	Native      string
	Description string
}

// Native returns the implementation ID for a blueprint name.
func (m *PackageManifest) Native(blueprint string) (string, bool) {
	for _, ref := range m.Blueprints {
		if ref.Name == blueprint {
			return ref.Native, true
		}
	}
	return "", false
}

// ManifestError reports invalid package code with its source position.
type ManifestError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ManifestError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ParseManifest compiles package code and validates it against the schema.
//
//	name: "hello-world"
//	blueprints: Hello: native: "fixtures.Hello"
func ParseManifest(code []byte) (*PackageManifest, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(manifestSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}

	v := ctx.CompileBytes(code, cue.Filename("package.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v = schema.LookupPath(cue.ParsePath("#Package")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	m := &PackageManifest{}

	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	m.Name = name

	if versionVal := v.LookupPath(cue.ParsePath("version")); versionVal.Exists() {
		if m.Version, err = versionVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	bpVal := v.LookupPath(cue.ParsePath("blueprints"))
	iter, err := bpVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		ref := BlueprintRef{Name: iter.Selector().String()}
		if ref.Native, err = iter.Value().LookupPath(cue.ParsePath("native")).String(); err != nil {
			return nil, formatCUEError(err)
		}
		if descVal := iter.Value().LookupPath(cue.ParsePath("description")); descVal.Exists() {
			if ref.Description, err = descVal.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		m.Blueprints = append(m.Blueprints, ref)
	}

	if len(m.Blueprints) == 0 {
		return nil, &ManifestError{
			Field:   "blueprints",
			Message: "at least one blueprint is required",
			Pos:     bpVal.Pos(),
		}
	}
	return m, nil
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &ManifestError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &ManifestError{Field: "cue", Message: first.Error()}
}
