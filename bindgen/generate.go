package bindgen

import (
	"bytes"
	"fmt"
	"go/types"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/tether/manifest"
)

const bridgePath = "github.com/chazu/tether/bridge"

// GenerateFromManifest introspects the manifest's package and renders the
// bindings file in one step.
func GenerateFromManifest(m *manifest.Manifest, pkgName string) (string, error) {
	model, err := BuildModel(m)
	if err != nil {
		return "", err
	}
	return Generate(model, pkgName)
}

// Generate renders the model as a Go source file in package pkgName,
// declaring RegisterBindings(e *bridge.Engine) error. The caller of the
// generated function must hold an engine scope.
func Generate(model *PackageModel, pkgName string) (string, error) {
	f := jen.NewFile(pkgName)
	f.HeaderComment("Code generated by tether gen. DO NOT EDIT.")

	var body []jen.Code
	for _, en := range model.Enums {
		body = append(body, registerEnum(model, en))
	}
	for i := range model.Classes {
		stmt, err := registerClass(model, &model.Classes[i])
		if err != nil {
			return "", err
		}
		body = append(body, stmt)
	}
	body = append(body, jen.Return(jen.Nil()))

	f.Comment("RegisterBindings registers the bound classes and enums with the engine.")
	f.Comment("The caller must hold an engine scope.")
	f.Func().Id("RegisterBindings").
		Params(jen.Id("e").Op("*").Qual(bridgePath, "Engine")).
		Error().
		Block(body...)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return "", fmt.Errorf("rendering bindings: %w", err)
	}
	return buf.String(), nil
}

func registerEnum(model *PackageModel, en EnumModel) jen.Code {
	chain := jen.Qual(bridgePath, "DefineEnum").
		Index(jen.Qual(model.ImportPath, en.TypeName)).
		Call(jen.Lit(en.Name))
	for _, v := range en.Values {
		chain = chain.Dot("Value").Call(jen.Lit(v), jen.Qual(model.ImportPath, v))
	}
	return buildOrReturn(chain)
}

func registerClass(model *PackageModel, cm *ClassModel) (jen.Code, error) {
	self := func() *jen.Statement {
		return jen.Op("*").Qual(model.ImportPath, cm.TypeName)
	}

	chain := jen.Qual(bridgePath, "DefineClass").
		Index(jen.Qual(model.ImportPath, cm.TypeName)).
		Call(jen.Lit(cm.Name))

	for _, ctor := range cm.Constructors {
		chain = chain.Dot("Constructor").Call(jen.Qual(model.ImportPath, ctor))
	}
	for _, mm := range cm.Methods {
		expr := jen.Parens(self()).Dot(mm.GoName)
		chain = chain.Dot("Method").Call(jen.Lit(mm.ScriptName), expr)
	}
	for _, pm := range cm.Properties {
		ft, err := typeExpr(pm.GoType)
		if err != nil {
			return nil, fmt.Errorf("class %s: property %s: %w", cm.Name, pm.ScriptName, err)
		}
		getter := jen.Func().
			Params(jen.Id("v").Add(self())).
			Add(ft).
			Block(jen.Return(jen.Id("v").Dot(pm.Field)))
		setter := jen.Nil()
		if !pm.ReadOnly {
			ft2, _ := typeExpr(pm.GoType)
			setter = jen.Func().
				Params(jen.Id("v").Add(self()), jen.Id("val").Add(ft2)).
				Block(jen.Id("v").Dot(pm.Field).Op("=").Id("val"))
		}
		chain = chain.Dot("Property").Call(jen.Lit(pm.ScriptName), getter, setter)
	}
	if cm.NoCopy {
		chain = chain.Dot("NoCopy").Call()
	}

	if cm.BaseTypeName != "" {
		upcast := jen.Func().
			Params(jen.Id("v").Add(self())).
			Op("*").Qual(model.ImportPath, cm.BaseTypeName).
			Block(jen.Return(jen.Op("&").Id("v").Dot(cm.BaseTypeName)))
		chain = jen.Qual(bridgePath, "Extends").Call(chain, upcast)
	}

	return buildOrReturn(chain), nil
}

func buildOrReturn(chain *jen.Statement) jen.Code {
	return jen.If(
		jen.List(jen.Id("_"), jen.Err()).Op(":=").Add(chain).Dot("Build").Call(jen.Id("e")),
		jen.Err().Op("!=").Nil(),
	).Block(jen.Return(jen.Err()))
}

// typeExpr renders a field type for the generated accessor signatures.
// supportedFieldType mirrors what it accepts.
func typeExpr(t types.Type) (*jen.Statement, error) {
	t = types.Unalias(t)
	switch tt := t.(type) {
	case *types.Basic:
		if tt.Info()&types.IsUntyped != 0 || tt.Kind() == types.Invalid || tt.Kind() == types.UnsafePointer {
			return nil, fmt.Errorf("unsupported field type %s", tt)
		}
		return jen.Id(tt.Name()), nil
	case *types.Pointer:
		inner, err := typeExpr(tt.Elem())
		if err != nil {
			return nil, err
		}
		return jen.Op("*").Add(inner), nil
	case *types.Slice:
		inner, err := typeExpr(tt.Elem())
		if err != nil {
			return nil, err
		}
		return jen.Index().Add(inner), nil
	case *types.Array:
		inner, err := typeExpr(tt.Elem())
		if err != nil {
			return nil, err
		}
		return jen.Index(jen.Lit(int(tt.Len()))).Add(inner), nil
	case *types.Map:
		k, err := typeExpr(tt.Key())
		if err != nil {
			return nil, err
		}
		v, err := typeExpr(tt.Elem())
		if err != nil {
			return nil, err
		}
		return jen.Map(k).Add(v), nil
	case *types.Named:
		obj := tt.Obj()
		if obj.Pkg() == nil {
			return jen.Id(obj.Name()), nil
		}
		if !obj.Exported() {
			return nil, fmt.Errorf("unexported field type %s", obj.Name())
		}
		return jen.Qual(obj.Pkg().Path(), obj.Name()), nil
	case *types.Interface:
		if tt.Empty() {
			return jen.Id("any"), nil
		}
		return nil, fmt.Errorf("unsupported interface field type %s", tt)
	}
	return nil, fmt.Errorf("unsupported field type %s", t)
}

func supportedFieldType(t types.Type) bool {
	_, err := typeExpr(t)
	return err == nil
}
