package messages

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// FieldSeparator joins the top-level fields of an envelope.
	FieldSeparator = "~|"
	// ListSeparator joins the items of a list-valued field.
	ListSeparator = "~,"
	// ItemSeparator joins the sub-fields of one list item.
	ItemSeparator = "~:"

	separatorLead = "~"
)

// ErrMalformedEnvelope matches every decode failure. Receivers log and drop.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// ErrInvalidField is returned by Encode when a text field cannot be represented.
var ErrInvalidField = errors.New("invalid field")

// MalformedEnvelopeError describes why a frame could not be decoded.
type MalformedEnvelopeError struct {
	Type   Type
	Reason string
}

func (e *MalformedEnvelopeError) Error() string {
	if e.Type != TypeNone {
		return fmt.Sprintf("malformed %s envelope: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("malformed envelope: %s", e.Reason)
}

func (e *MalformedEnvelopeError) Is(target error) bool {
	return target == ErrMalformedEnvelope
}

func malformed(t Type, format string, args ...interface{}) error {
	return &MalformedEnvelopeError{Type: t, Reason: fmt.Sprintf(format, args...)}
}

// SanitizeText makes free-form user text (chat, nicknames) safe to encode.
func SanitizeText(s string) string {
	return strings.ReplaceAll(s, separatorLead, "-")
}

// Encode serializes an envelope into its delimited text form.
func Encode(e *Envelope) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("cannot encode nil envelope")
	}
	if !e.Category.valid() {
		return nil, fmt.Errorf("cannot encode envelope with %s", e.Category)
	}
	if e.Category != Unregistered && e.ID == 0 {
		return nil, fmt.Errorf("%w: %s envelope without id", ErrInvalidField, e.Category)
	}

	header := []string{
		string(e.Category),
		strconv.FormatUint(uint64(e.ID), 10),
		strconv.FormatUint(uint64(e.Origin), 10),
	}
	if e.Category == Receipt {
		return []byte(strings.Join(header, FieldSeparator)), nil
	}

	if e.Payload == nil {
		return nil, fmt.Errorf("cannot encode %s envelope without payload", e.Type)
	}
	if e.Type != e.Payload.Type() {
		return nil, fmt.Errorf("envelope type %s does not match payload type %s", e.Type, e.Payload.Type())
	}

	w := &fieldWriter{fields: append(header, e.Type.String())}
	e.Payload.encodeFields(w)
	if w.err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", e.Type, w.err)
	}

	return []byte(strings.Join(w.fields, FieldSeparator)), nil
}

// Decode parses a frame produced by Encode. Any failure is a *MalformedEnvelopeError.
func Decode(b []byte) (*Envelope, error) {
	parts := strings.Split(string(b), FieldSeparator)
	if len(parts) < 3 {
		return nil, malformed(TypeNone, "expected at least 3 fields, got %d", len(parts))
	}
	if len(parts[0]) != 1 || !Category(parts[0][0]).valid() {
		return nil, malformed(TypeNone, "unknown category %q", parts[0])
	}
	category := Category(parts[0][0])

	id, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return nil, malformed(TypeNone, "invalid id %q", parts[1])
	}
	origin, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return nil, malformed(TypeNone, "invalid origin %q", parts[2])
	}

	e := &Envelope{
		Category: category,
		ID:       uint32(id),
		Origin:   uint32(origin),
	}

	if category == Receipt {
		if len(parts) != 3 {
			return nil, malformed(TypeNone, "receipt must have 3 fields, got %d", len(parts))
		}
		if e.ID == 0 {
			return nil, malformed(TypeNone, "receipt without id")
		}
		return e, nil
	}

	if len(parts) < 4 {
		return nil, malformed(TypeNone, "missing type field")
	}
	t, ok := ParseType(parts[3])
	if !ok {
		return nil, malformed(TypeNone, "unknown type code %q", parts[3])
	}
	e.Type = t

	switch category {
	case Registered:
		if e.ID == 0 {
			return nil, malformed(t, "registered message without id")
		}
	case Unregistered:
		e.ID = 0
	}

	payload, ok := newPayload(t)
	if !ok {
		return nil, malformed(t, "no payload for type")
	}
	r := &fieldReader{fields: parts[4:]}
	payload.decodeFields(r)
	if err := r.done(); err != nil {
		return nil, malformed(t, "%v", err)
	}
	e.Payload = payload

	return e, nil
}

// fieldWriter accumulates encoded fields, keeping the first error.
type fieldWriter struct {
	fields []string
	err    error
}

// itemWriter writes the sub-fields of a structured value.
type itemWriter = fieldWriter

func (w *fieldWriter) put(s string) {
	w.fields = append(w.fields, s)
}

func (w *fieldWriter) uint32(v uint32) { w.put(strconv.FormatUint(uint64(v), 10)) }
func (w *fieldWriter) int(v int)       { w.put(strconv.Itoa(v)) }
func (w *fieldWriter) int64(v int64)   { w.put(strconv.FormatInt(v, 10)) }
func (w *fieldWriter) float(v float64) { w.put(strconv.FormatFloat(v, 'g', -1, 64)) }
func (w *fieldWriter) msgType(t Type)  { w.put(t.String()) }

func (w *fieldWriter) bool(v bool) {
	if v {
		w.put("1")
		return
	}
	w.put("0")
}

func (w *fieldWriter) str(s string) {
	if strings.Contains(s, separatorLead) {
		if w.err == nil {
			w.err = fmt.Errorf("%w: text %q contains %q", ErrInvalidField, s, separatorLead)
		}
		return
	}
	w.put(s)
}

func (w *fieldWriter) strs(list []string) {
	sub := &fieldWriter{}
	for _, s := range list {
		sub.str(s)
	}
	if sub.err != nil && w.err == nil {
		w.err = sub.err
	}
	w.put(strings.Join(sub.fields, ListSeparator))
}

// record writes a structured value as consecutive top-level fields.
func (w *fieldWriter) record(encode func(*itemWriter)) {
	encode(w)
}

// list writes structured values into a single list-valued field.
func (w *fieldWriter) list(items []func(*itemWriter)) {
	encoded := make([]string, 0, len(items))
	for _, encode := range items {
		sub := &fieldWriter{}
		encode(sub)
		if sub.err != nil && w.err == nil {
			w.err = sub.err
		}
		encoded = append(encoded, strings.Join(sub.fields, ItemSeparator))
	}
	w.put(strings.Join(encoded, ListSeparator))
}

// fieldReader consumes decoded fields in order, keeping the first error.
type fieldReader struct {
	fields []string
	pos    int
	err    error
}

func (r *fieldReader) fail(format string, args ...interface{}) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func (r *fieldReader) next() string {
	if r.pos >= len(r.fields) {
		r.fail("expected more than %d fields", len(r.fields))
		r.pos++
		return ""
	}
	s := r.fields[r.pos]
	r.pos++
	return s
}

func (r *fieldReader) uint32() uint32 {
	s := r.next()
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		r.fail("field %d: invalid unsigned integer %q", r.pos, s)
	}
	return uint32(v)
}

func (r *fieldReader) int() int {
	s := r.next()
	v, err := strconv.Atoi(s)
	if err != nil {
		r.fail("field %d: invalid integer %q", r.pos, s)
	}
	return v
}

func (r *fieldReader) int64() int64 {
	s := r.next()
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		r.fail("field %d: invalid integer %q", r.pos, s)
	}
	return v
}

func (r *fieldReader) float() float64 {
	s := r.next()
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail("field %d: invalid number %q", r.pos, s)
	}
	return v
}

func (r *fieldReader) bool() bool {
	switch s := r.next(); s {
	case "1":
		return true
	case "0":
		return false
	default:
		r.fail("field %d: invalid boolean %q", r.pos, s)
		return false
	}
}

func (r *fieldReader) str() string {
	return r.next()
}

func (r *fieldReader) msgType() Type {
	s := r.next()
	t, ok := ParseType(s)
	if !ok {
		r.fail("field %d: unknown type code %q", r.pos, s)
	}
	return t
}

func (r *fieldReader) strs() []string {
	s := r.next()
	if s == "" {
		return nil
	}
	return strings.Split(s, ListSeparator)
}

// list splits a list-valued field into item readers of the given width.
func (r *fieldReader) list(width int) []*fieldReader {
	s := r.next()
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ListSeparator)
	items := make([]*fieldReader, len(raw))
	for i, item := range raw {
		fields := strings.Split(item, ItemSeparator)
		if len(fields) != width {
			r.fail("field %d item %d: expected %d sub-fields, got %d", r.pos, i, width, len(fields))
		}
		items[i] = &fieldReader{fields: fields}
	}
	return items
}

// absorb folds a finished item reader's error into r.
func (r *fieldReader) absorb(item *fieldReader) {
	if err := item.done(); err != nil {
		r.fail("list item: %v", err)
	}
}

func (r *fieldReader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.pos != len(r.fields) {
		return fmt.Errorf("expected %d fields, got %d", r.pos, len(r.fields))
	}
	return nil
}
