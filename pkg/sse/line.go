package sse

import "bytes"

// findEOL locates the next line terminator in b: an LF, a CRLF, or a
// lone CR. It returns the exclusive end of the line and the start of
// the remainder. ok is false when b holds no complete terminator —
// including when b ends with a bare CR, which cannot be told apart
// from the first half of a CRLF until the next byte is available.
func findEOL(b []byte) (end, next int, ok bool) {
	n := len(b)
	lf := bytes.IndexByte(b, '\n')
	if lf >= 0 {
		n = lf
	}
	if cr := bytes.IndexByte(b[:n], '\r'); cr >= 0 {
		if cr+1 == len(b) {
			return 0, 0, false
		}
		if b[cr+1] == '\n' {
			return cr, cr + 2, true
		}
		return cr, cr + 1, true
	}
	if lf < 0 {
		return 0, 0, false
	}
	return lf, lf + 1, true
}

type lineKind uint8

const (
	lineBlank lineKind = iota
	lineComment
	lineField
)

type fieldName uint8

const (
	fieldData fieldName = iota
	fieldEvent
	fieldID
	fieldRetry
	fieldOther
)

// lineClass is the classification of one terminator-stripped line.
// For field lines, nameEnd and the value bounds are offsets into the
// classified line; the value has at most one leading space removed.
type lineClass struct {
	kind         lineKind
	field        fieldName
	nameEnd      int
	valLo, valHi int
}

// classify tags a single line. It never fails: a line with no colon
// is a field whose name is the whole line and whose value is empty,
// an unrecognized name classifies as fieldOther, and a line starting
// with ':' is a comment whose content is never inspected.
func classify(b []byte) lineClass {
	if len(b) == 0 {
		return lineClass{kind: lineBlank}
	}
	if b[0] == ':' {
		return lineClass{kind: lineComment}
	}
	colon := bytes.IndexByte(b, ':')
	if colon < 0 {
		n := len(b)
		return lineClass{kind: lineField, field: lookupField(b), nameEnd: n, valLo: n, valHi: n}
	}
	lo := colon + 1
	if lo < len(b) && b[lo] == ' ' {
		lo++
	}
	return lineClass{kind: lineField, field: lookupField(b[:colon]), nameEnd: colon, valLo: lo, valHi: len(b)}
}

func lookupField(name []byte) fieldName {
	switch string(name) {
	case "data":
		return fieldData
	case "event":
		return fieldEvent
	case "id":
		return fieldID
	case "retry":
		return fieldRetry
	}
	return fieldOther
}
