package config

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// Validation error codes.
const (
	ErrCodeSchema         = "C100" // value violates the schema
	ErrCodeInvalidPattern = "C101" // failure pattern is not a valid regexp
	ErrCodeSchemaInternal = "C199" // the embedded schema failed to compile
)

// ValidationError is one problem found in a configuration.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// InvalidError reports every validation problem of one configuration.
type InvalidError struct {
	Source string
	Errors []ValidationError
}

func (e *InvalidError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid configuration %s:", e.Source)
	for _, ve := range e.Errors {
		b.WriteString("\n  ")
		b.WriteString(ve.Error())
	}
	return b.String()
}

// Validate checks cfg against the embedded schema plus the rules CUE
// cannot express. It returns all problems found, sorted by field.
func Validate(cfg *Config) []ValidationError {
	errs := validateSchema(cfg)

	for i, p := range cfg.Host.FailurePatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("host.failure_patterns.%d", i),
				Message: err.Error(),
				Code:    ErrCodeInvalidPattern,
			})
		}
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

func validateSchema(cfg *Config) []ValidationError {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return []ValidationError{{Field: "schema", Message: err.Error(), Code: ErrCodeSchemaInternal}}
	}

	// A nil slice encodes as null, which the list type rejects.
	encoded := *cfg
	if encoded.Host.FailurePatterns == nil {
		encoded.Host.FailurePatterns = []string{}
	}

	v := schema.Unify(ctx.Encode(&encoded))
	err := v.Validate(cue.Concrete(true), cue.All())
	if err == nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		path := e.Path()
		if len(path) > 0 && path[0] == "#Config" {
			path = path[1:]
		}
		field := strings.Join(path, ".")
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		key := field + "\x00" + msg
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ValidationError{Field: field, Message: msg, Code: ErrCodeSchema})
	}
	return out
}
