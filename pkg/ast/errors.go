package ast

import (
	"errors"
	"fmt"
)

// Position locates a node in the original source file. The parser attaches
// one to every node it produces; the processor reports diagnostics against it.
type Position struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (p Position) Pos() Position {
	return p
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}

	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// WrapError attaches this position to err unless a nearer position is
// already attached.
func (p Position) WrapError(err error) error {
	if err == nil {
		return nil
	}

	var posErr PositionError
	if errors.As(err, &posErr) {
		return err
	}

	return PositionError{Position: p, Err: err}
}

type ErrorWrapper interface {
	WrapError(err error) error
}

type PositionError struct {
	Position Position
	Err      error
}

func (e PositionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Position, e.Err)
}

func (e PositionError) Unwrap() error {
	return e.Err
}
