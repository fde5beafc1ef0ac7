// Package modules is the catalog of runtime imports. A parsed translation
// unit names the modules it includes; the processor copies the recognized
// signatures into the produced IR so the generator can emit imports.
package modules

import "github.com/MrShadowKiller/c-slang/pkg/ctype"

// Module groups the external function signatures one include supplies.
type Module struct {
	Name string

	// Functions preserves declaration order so import indices are stable.
	Functions []ModuleFunction
}

type ModuleFunction struct {
	Name string
	Type *ctype.Function
}

// Repository maps module names to their signatures.
type Repository struct {
	modules map[string]*Module
	order   []string
}

func NewRepository(mods ...*Module) *Repository {
	r := &Repository{modules: make(map[string]*Module)}
	for _, m := range mods {
		r.Add(m)
	}

	return r
}

func (r *Repository) Add(m *Module) {
	if _, ok := r.modules[m.Name]; !ok {
		r.order = append(r.order, m.Name)
	}

	r.modules[m.Name] = m
}

func (r *Repository) Lookup(name string) (*Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

func (r *Repository) Names() []string {
	return r.order
}

func void() *ctype.Void { return ctype.VoidType }

func prim(k ctype.PrimaryKind) *ctype.Primary { return ctype.NewPrimary(k) }

// Default returns the standard runtime catalog.
func Default() *Repository {
	charPtr := ctype.NewPointer(prim(ctype.SignedChar))
	voidPtr := ctype.NewPointer(void())

	stdlib := &Module{
		Name: "source_stdlib",
		Functions: []ModuleFunction{
			{Name: "print_int", Type: &ctype.Function{Return: void(), Parameters: []ctype.DataType{prim(ctype.SignedInt)}}},
			{Name: "print_int_unsigned", Type: &ctype.Function{Return: void(), Parameters: []ctype.DataType{prim(ctype.UnsignedInt)}}},
			{Name: "print_long", Type: &ctype.Function{Return: void(), Parameters: []ctype.DataType{prim(ctype.SignedLong)}}},
			{Name: "print_long_unsigned", Type: &ctype.Function{Return: void(), Parameters: []ctype.DataType{prim(ctype.UnsignedLong)}}},
			{Name: "print_char", Type: &ctype.Function{Return: void(), Parameters: []ctype.DataType{prim(ctype.SignedChar)}}},
			{Name: "print_float", Type: &ctype.Function{Return: void(), Parameters: []ctype.DataType{prim(ctype.Float)}}},
			{Name: "print_double", Type: &ctype.Function{Return: void(), Parameters: []ctype.DataType{prim(ctype.Double)}}},
			{Name: "print_string", Type: &ctype.Function{Return: void(), Parameters: []ctype.DataType{charPtr}}},
			{Name: "print_address", Type: &ctype.Function{Return: void(), Parameters: []ctype.DataType{voidPtr}}},
			{Name: "malloc", Type: &ctype.Function{Return: voidPtr, Parameters: []ctype.DataType{prim(ctype.UnsignedLong)}}},
			{Name: "free", Type: &ctype.Function{Return: void(), Parameters: []ctype.DataType{voidPtr}}},
		},
	}

	return NewRepository(stdlib)
}
