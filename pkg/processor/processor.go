// Package processor is the semantic analyzer and lowering pass: it consumes
// a parsed C translation unit and produces the typed, memory-addressed IR
// the WebAssembly generator emits from.
package processor

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrShadowKiller/c-slang/pkg/ast"
	"github.com/MrShadowKiller/c-slang/pkg/ir"
	"github.com/MrShadowKiller/c-slang/pkg/modules"
)

type Config struct {
	// Modules supplies the runtime import signatures; nil means the default
	// catalog.
	Modules *modules.Repository
}

func (c *Config) Validate(logger *slog.Logger) error {
	if c.Modules == nil {
		c.Modules = modules.Default()
	}

	return nil
}

// Processor holds the mutable state of one compilation: the symbol table,
// the accumulated data segment, the function table, and the per-function
// counters. A Processor is single use; process a second unit with a fresh
// instance.
type Processor struct {
	logger *slog.Logger
	Config Config

	table    *SymbolTable
	warnings []Warning

	functionTable []string
	externals     []ir.ExternalFunction

	definingStructs []string

	current     *functionContext
	loopDepth   int
	switchDepth int

	used bool
}

func New(logger *slog.Logger, config Config) (*Processor, error) {
	err := config.Validate(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to validate processor config: %w", err)
	}

	return &Processor{
		logger: logger,
		Config: config,
		table:  NewSymbolTable(),
	}, nil
}

// Process lowers a parsed translation unit into IR. Warnings are returned
// alongside the IR; the first error aborts with no partial result.
func (p *Processor) Process(root *ast.CAstRoot) (*ir.Root, []Warning, error) {
	if p.used {
		return nil, nil, fmt.Errorf("processor instances are single use")
	}
	p.used = true

	err := p.importModules(root)
	if err != nil {
		return nil, nil, err
	}

	var functions []*ir.FunctionDefinition

	for _, child := range root.Children {
		switch child := child.(type) {
		case *ast.FunctionDefinition:
			p.logger.Debug("processing function", "name", child.Name)

			fn, err := p.processFunctionDefinition(child)
			if err != nil {
				return nil, nil, err
			}

			functions = append(functions, fn)
		case *ast.Declaration:
			err := p.processGlobalDeclaration(child)
			if err != nil {
				return nil, nil, err
			}
		case *ast.EnumDeclaration:
			_, err := p.resolveEnumType(&ast.EnumType{
				Tag:      child.Tag,
				Members:  child.Members,
				Position: child.Position,
			})
			if err != nil {
				return nil, nil, err
			}
		default:
			return nil, nil, child.WrapError(fmt.Errorf("unhandled top-level item %T", child))
		}
	}

	err = p.verifyMain(root)
	if err != nil {
		return nil, nil, err
	}

	segment := p.table.DataSegment()

	out := &ir.Root{
		Functions:              functions,
		DataSegmentByteStr:     encodeByteStr(segment),
		DataSegmentSizeInBytes: len(segment),
		ExternalFunctions:      p.externals,
		FunctionTable:          p.functionTable,
	}

	p.logger.Debug("processed translation unit",
		"functions", len(out.Functions),
		"dataSegmentBytes", out.DataSegmentSizeInBytes,
		"tableEntries", len(out.FunctionTable))

	return out, p.warnings, nil
}

// importModules declares every function of every included module and
// records the import list for the generator.
func (p *Processor) importModules(root *ast.CAstRoot) error {
	for _, name := range root.IncludedModules {
		mod, ok := p.Config.Modules.Lookup(name)
		if !ok {
			p.warnf(root.Position, "unrecognized module '%s'", name)
			continue
		}

		for _, fn := range mod.Functions {
			err := p.table.Declare(fn.Name, &FunctionSymbol{
				DataType:   fn.Type,
				TableIndex: -1,
				Defined:    true,
				External:   true,
				Module:     mod.Name,
			})
			if err != nil {
				return root.WrapError(err)
			}

			p.externals = append(p.externals, ir.ExternalFunction{
				Module: mod.Name,
				Name:   fn.Name,
				Type:   fn.Type,
			})
		}
	}

	return nil
}

func (p *Processor) verifyMain(root *ast.CAstRoot) error {
	entry, ok := p.table.Lookup("main")
	if ok {
		if fn, isFn := entry.(*FunctionSymbol); isFn && fn.Defined && !fn.External {
			return nil
		}
	}

	return root.WrapError(fmt.Errorf("main function not defined"))
}

// encodeByteStr renders the data segment with each byte as \XX.
func encodeByteStr(segment []byte) string {
	var b strings.Builder
	b.Grow(len(segment) * 3)

	for _, by := range segment {
		fmt.Fprintf(&b, "\\%02x", by)
	}

	return b.String()
}
