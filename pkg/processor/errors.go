package processor

import (
	"fmt"

	"github.com/MrShadowKiller/c-slang/pkg/ast"
)

// PositionError is the error shape every processing failure is reported
// through: the canonical message wrapped with the source position of the
// nearest AST node.
type PositionError = ast.PositionError

// Warning is a non-fatal diagnostic. Warnings are collected during
// processing and returned alongside the IR; they never abort.
type Warning struct {
	Position ast.Position
	Message  string
}

func (p *Processor) warnf(pos ast.Position, format string, args ...any) {
	w := Warning{Position: pos, Message: fmt.Sprintf(format, args...)}
	p.warnings = append(p.warnings, w)
	p.logger.Debug("warning", "pos", pos.String(), "message", w.Message)
}
