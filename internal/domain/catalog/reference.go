// Package catalog holds the workshop master data that billing and stock
// documents point at: parts, job types, service packages and external services.
package catalog

import (
	"fmt"
	"strings"

	"workshop/internal/core/apperror"
)

// ReferenceKind is the closed set of things a price or billing line can refer to.
type ReferenceKind string

const (
	KindPart            ReferenceKind = "Part"
	KindJobType         ReferenceKind = "Job Type"
	KindServicePackage  ReferenceKind = "Service Package"
	KindExternalService ReferenceKind = "External Service"
)

// Kinds lists every ReferenceKind.
var Kinds = []ReferenceKind{KindPart, KindJobType, KindServicePackage, KindExternalService}

// ParseReferenceKind accepts the display name ("Job Type") or the snake form ("job_type").
func ParseReferenceKind(s string) (ReferenceKind, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", " "))
	for _, k := range Kinds {
		if strings.ToLower(string(k)) == norm {
			return k, nil
		}
	}
	return "", apperror.NewValidation(fmt.Sprintf("unknown reference type %q", s)).
		WithDetail("field", "reference_type")
}

// Reference identifies a catalog record by kind and name.
type Reference struct {
	Kind ReferenceKind `json:"reference_type"`
	Name string        `json:"reference_name"`
}

// Ref is a shorthand constructor.
func Ref(kind ReferenceKind, name string) Reference {
	return Reference{Kind: kind, Name: name}
}

// Validate checks that both parts are set and the kind is known.
func (r Reference) Validate() error {
	var missing []string
	if r.Kind == "" {
		missing = append(missing, "reference_type")
	}
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "reference_name")
	}
	if len(missing) > 0 {
		return apperror.NewMissingRequiredField(missing...)
	}
	switch r.Kind {
	case KindPart, KindJobType, KindServicePackage, KindExternalService:
		return nil
	default:
		return apperror.NewValidation(fmt.Sprintf("unknown reference type %q", r.Kind))
	}
}

func (r Reference) String() string {
	return fmt.Sprintf("%s '%s'", r.Kind, r.Name)
}
