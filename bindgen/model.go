// Package bindgen introspects Go packages and generates bridge
// registrations from a binding manifest.
package bindgen

import "go/types"

// PackageModel is the in-memory view of the bound package's exported API,
// filtered and renamed through the manifest. Classes are in registration
// order: bases precede subclasses.
type PackageModel struct {
	ImportPath string
	Name       string // short package name (e.g. "geom")
	Classes    []ClassModel
	Enums      []EnumModel
}

// ClassModel carries everything the generator needs for one class
// registration.
type ClassModel struct {
	Name         string // script name
	TypeName     string // Go type name within the bound package
	BaseTypeName string // Go type name of the embedded base, or ""
	NoCopy       bool
	Constructors []string // Go function names
	Methods      []MethodModel
	Properties   []PropertyModel
}

// MethodModel maps one script method to the Go method it binds.
type MethodModel struct {
	ScriptName string
	GoName     string
}

// PropertyModel maps one script property to the Go field it binds.
type PropertyModel struct {
	ScriptName string
	Field      string
	ReadOnly   bool
	GoType     types.Type // field type, for the generated accessor signatures
}

// EnumModel carries one enum registration: Values name Go constants of the
// enum type, in entry order.
type EnumModel struct {
	Name     string // script name
	TypeName string
	Values   []string
}
