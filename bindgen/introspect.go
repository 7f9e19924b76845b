package bindgen

import (
	"fmt"
	"go/types"
	"sort"

	"golang.org/x/tools/go/packages"

	"github.com/chazu/tether/manifest"
)

// BuildModel loads the manifest's Go package and resolves every declared
// binding against its type information. The manifest must already validate;
// classes come back in registration order.
func BuildModel(m *manifest.Manifest) (*PackageModel, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedSyntax,
	}
	if m.Dir != "" {
		cfg.Dir = m.Dir
	}

	pkgs, err := packages.Load(cfg, m.Module.Package)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", m.Module.Package, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %s", m.Module.Package)
	}
	if len(pkgs[0].Errors) > 0 {
		return nil, fmt.Errorf("package errors in %s: %v", m.Module.Package, pkgs[0].Errors)
	}
	pkg := pkgs[0]
	if pkg.Types == nil {
		return nil, fmt.Errorf("type information not available for %s", m.Module.Package)
	}

	model := &PackageModel{
		ImportPath: pkg.PkgPath,
		Name:       pkg.Name,
	}
	scope := pkg.Types.Scope()

	ordered, err := m.RegistrationOrder()
	if err != nil {
		return nil, err
	}
	for i := range ordered {
		cm, err := buildClassModel(m, &ordered[i], scope)
		if err != nil {
			return nil, err
		}
		model.Classes = append(model.Classes, *cm)
	}

	for i := range m.Enums {
		em, err := buildEnumModel(&m.Enums[i], scope)
		if err != nil {
			return nil, err
		}
		model.Enums = append(model.Enums, *em)
	}

	return model, nil
}

func buildClassModel(m *manifest.Manifest, c *manifest.Class, scope *types.Scope) (*ClassModel, error) {
	named, st, err := lookupStruct(scope, c.Type)
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", c.Name, err)
	}

	cm := &ClassModel{
		Name:     c.Name,
		TypeName: c.Type,
		NoCopy:   c.NoCopy,
	}

	if c.Base != "" {
		base, _ := m.ClassByName(c.Base)
		cm.BaseTypeName = base.Type
		if err := checkEmbedded(st, base.Type); err != nil {
			return nil, fmt.Errorf("class %s: %w", c.Name, err)
		}
	}

	for _, ctor := range c.Constructors {
		obj := scope.Lookup(ctor)
		if _, ok := obj.(*types.Func); !ok {
			return nil, fmt.Errorf("class %s: constructor %s not found", c.Name, ctor)
		}
		cm.Constructors = append(cm.Constructors, ctor)
	}

	if len(c.Methods) > 0 {
		for _, script := range sortedKeys(c.Methods) {
			goName := c.Methods[script]
			if !hasMethod(named, goName) {
				return nil, fmt.Errorf("class %s: method %s not found on %s", c.Name, goName, c.Type)
			}
			cm.Methods = append(cm.Methods, MethodModel{ScriptName: script, GoName: goName})
		}
	} else if len(c.Properties) == 0 {
		cm.Methods = deriveMethods(named)
	}

	if len(c.Properties) > 0 {
		for _, script := range sortedKeys(c.Properties) {
			p := c.Properties[script]
			ft, ok := fieldType(st, p.Field)
			if !ok {
				return nil, fmt.Errorf("class %s: field %s not found on %s", c.Name, p.Field, c.Type)
			}
			cm.Properties = append(cm.Properties, PropertyModel{
				ScriptName: script,
				Field:      p.Field,
				ReadOnly:   p.ReadOnly,
				GoType:     ft,
			})
		}
	} else if len(c.Methods) == 0 {
		cm.Properties = deriveProperties(st)
	}

	return cm, nil
}

func buildEnumModel(en *manifest.Enum, scope *types.Scope) (*EnumModel, error) {
	obj := scope.Lookup(en.Type)
	tn, ok := obj.(*types.TypeName)
	if !ok {
		return nil, fmt.Errorf("enum %s: type %s not found", en.Name, en.Type)
	}
	named := tn.Type()
	basic, ok := named.Underlying().(*types.Basic)
	if !ok || basic.Info()&types.IsInteger == 0 {
		return nil, fmt.Errorf("enum %s: type %s must have an integer underlying type", en.Name, en.Type)
	}

	em := &EnumModel{Name: en.Name, TypeName: en.Type}

	if len(en.Values) > 0 {
		for _, v := range en.Values {
			c, ok := scope.Lookup(v).(*types.Const)
			if !ok || !types.Identical(c.Type(), named) {
				return nil, fmt.Errorf("enum %s: %s is not a constant of type %s", en.Name, v, en.Type)
			}
			em.Values = append(em.Values, v)
		}
		return em, nil
	}

	// Derive every declared constant of the type, sorted by name.
	for _, name := range scope.Names() {
		if c, ok := scope.Lookup(name).(*types.Const); ok && c.Exported() && types.Identical(c.Type(), named) {
			em.Values = append(em.Values, name)
		}
	}
	if len(em.Values) == 0 {
		return nil, fmt.Errorf("enum %s: no constants of type %s found", en.Name, en.Type)
	}
	return em, nil
}

func lookupStruct(scope *types.Scope, name string) (*types.Named, *types.Struct, error) {
	obj := scope.Lookup(name)
	tn, ok := obj.(*types.TypeName)
	if !ok {
		return nil, nil, fmt.Errorf("type %s not found", name)
	}
	named, ok := tn.Type().(*types.Named)
	if !ok {
		return nil, nil, fmt.Errorf("type %s is not a named type", name)
	}
	st, ok := named.Underlying().(*types.Struct)
	if !ok {
		return nil, nil, fmt.Errorf("type %s is not a struct", name)
	}
	return named, st, nil
}

// checkEmbedded verifies the base type is embedded by value, so the
// generated upcast can take the embedded field's address.
func checkEmbedded(st *types.Struct, baseType string) error {
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if !f.Embedded() || f.Name() != baseType {
			continue
		}
		if _, ok := f.Type().(*types.Pointer); ok {
			return fmt.Errorf("base type %s must be embedded by value", baseType)
		}
		return nil
	}
	return fmt.Errorf("base type %s must be embedded", baseType)
}

func hasMethod(named *types.Named, name string) bool {
	mset := types.NewMethodSet(types.NewPointer(named))
	for i := 0; i < mset.Len(); i++ {
		if fn, ok := mset.At(i).Obj().(*types.Func); ok && fn.Name() == name {
			return true
		}
	}
	return false
}

// deriveMethods collects exported methods declared directly on the type.
// Promoted methods are skipped: those register on the class of the embedded
// type. Script names are derived.
func deriveMethods(named *types.Named) []MethodModel {
	var out []MethodModel
	mset := types.NewMethodSet(types.NewPointer(named))
	for i := 0; i < mset.Len(); i++ {
		sel := mset.At(i)
		fn, ok := sel.Obj().(*types.Func)
		if !ok || !fn.Exported() {
			continue
		}
		if len(sel.Index()) > 1 {
			continue
		}
		out = append(out, MethodModel{
			ScriptName: manifest.ToLowerCamel(fn.Name()),
			GoName:     fn.Name(),
		})
	}
	return out
}

// deriveProperties collects exported fields whose types the generator can
// express in an accessor signature.
func deriveProperties(st *types.Struct) []PropertyModel {
	var out []PropertyModel
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if !f.Exported() || f.Embedded() || !supportedFieldType(f.Type()) {
			continue
		}
		out = append(out, PropertyModel{
			ScriptName: manifest.ToLowerCamel(f.Name()),
			Field:      f.Name(),
			GoType:     f.Type(),
		})
	}
	return out
}

func fieldType(st *types.Struct, name string) (types.Type, bool) {
	for i := 0; i < st.NumFields(); i++ {
		if f := st.Field(i); f.Name() == name && f.Exported() {
			return f.Type(), true
		}
	}
	return nil, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
