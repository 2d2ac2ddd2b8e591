package tokenizer

import (
	"strings"

	"github.com/coreweb/engine/cmn"
)

// State names the tokenizer's current mode. Only RCDATA/RAWTEXT/ScriptData
// are driven externally (by the tree constructor, via SwitchTo); all others
// are internal to Run's state machine (spec.md §4.9).
type State uint8

const (
	Data State = iota
	TagOpen
	EndTagOpen
	TagName
	BeforeAttributeName
	AttributeName
	AfterAttributeName
	BeforeAttributeValue
	AttributeValueDoubleQuoted
	AttributeValueSingleQuoted
	AttributeValueUnquoted
	AfterAttributeValueQuoted
	SelfClosingStartTag
	MarkupDeclarationOpen
	CommentStart
	Comment
	CommentEndDash
	CommentEnd
	DOCTYPEState
	BeforeDOCTYPEName
	DOCTYPEName
	AfterDOCTYPEName
	RCDATA
	RAWTEXT
	ScriptData
	CDATASection
)

// Tokenizer turns a decoded code-point stream into HTML tokens.
type Tokenizer struct {
	src []rune
	pos int

	state        State
	returnState  State // state to resume after a raw-text end tag closes
	rawTextTag   string // tag name that must match the closing end tag in RCDATA/RAWTEXT/ScriptData

	// Emitted tokens, collected eagerly; Next() drains this queue.
	queue []Token

	errs []ParseError

	// in-progress tag/comment/doctype being assembled across steps
	pending        *Token
	pendingAttrN   strings.Builder
	pendingAttrV   strings.Builder
	pendingQuote   rune
	pendingComment strings.Builder
	seenAttrNames  map[string]bool
}

// ParseError records a recovered tokenizer error (spec.md §4.10 "Failure
// semantics": recorded, never fatal unless the caller runs in strict mode).
type ParseError struct {
	Pos     int
	Message string
}

// New creates a Tokenizer over already-decoded code points (encoding
// sniffing/decoding happens upstream, spec.md §4.9 "Encoding").
func New(src []rune) *Tokenizer {
	return &Tokenizer{src: src, state: Data}
}

// Errors returns every parse error recorded so far.
func (t *Tokenizer) Errors() []ParseError { return t.errs }

func (t *Tokenizer) errorf(msg string) {
	t.errs = append(t.errs, ParseError{Pos: t.pos, Message: msg})
}

// SwitchTo is called by the tree constructor right after it pushes an
// element like <title>, <textarea>, <style>, or <script>: it switches the
// tokenizer into RCDATA/RAWTEXT/ScriptData and remembers tagName so the
// matching end tag returns the tokenizer to Data (spec.md §4.9).
func (t *Tokenizer) SwitchTo(s State, tagName string) {
	t.state = s
	t.rawTextTag = strings.ToLower(tagName)
}

func (t *Tokenizer) peek() (rune, bool) {
	if t.pos >= len(t.src) {
		return 0, false
	}
	return t.src[t.pos], true
}

func (t *Tokenizer) next() (rune, bool) {
	c, ok := t.peek()
	if ok {
		t.pos++
	}
	return c, ok
}

// Next runs the state machine until it has a token ready and returns it.
// The final call returns an EOF token.
func (t *Tokenizer) Next() Token {
	for len(t.queue) == 0 {
		if !t.step() {
			t.queue = append(t.queue, Token{Type: EOF})
		}
	}
	tok := t.queue[0]
	t.queue = t.queue[1:]
	return tok
}

func (t *Tokenizer) emit(tok Token) { t.queue = append(t.queue, tok) }

// step advances the state machine by one logical unit of work. Returns
// false at true end-of-input with nothing left to emit.
func (t *Tokenizer) step() bool {
	switch t.state {
	case Data:
		return t.stepData()
	case RCDATA, RAWTEXT, ScriptData:
		return t.stepRawText()
	case TagOpen:
		return t.stepTagOpen()
	case EndTagOpen:
		return t.stepEndTagOpen()
	case TagName:
		return t.stepTagName()
	case BeforeAttributeName, AttributeName, AfterAttributeName:
		return t.stepAttributeName()
	case BeforeAttributeValue, AttributeValueDoubleQuoted, AttributeValueSingleQuoted, AttributeValueUnquoted, AfterAttributeValueQuoted:
		return t.stepAttributeValue()
	case SelfClosingStartTag:
		return t.stepSelfClosingStartTag()
	case MarkupDeclarationOpen:
		return t.stepMarkupDeclarationOpen()
	case CommentStart, Comment, CommentEndDash, CommentEnd:
		return t.stepComment()
	case DOCTYPEState, BeforeDOCTYPEName, DOCTYPEName, AfterDOCTYPEName:
		return t.stepDoctype()
	case CDATASection:
		return t.stepCDATA()
	default:
		cmn.Assertf(false, "unhandled tokenizer state %d", t.state)
		return false
	}
}

func (t *Tokenizer) stepData() bool {
	var sb strings.Builder
	for {
		c, ok := t.peek()
		if !ok {
			if sb.Len() > 0 {
				t.emit(Token{Type: Character, Data: sb.String()})
			}
			return sb.Len() > 0
		}
		if c == '<' {
			if sb.Len() > 0 {
				t.emit(Token{Type: Character, Data: sb.String()})
			}
			t.pos++
			t.state = TagOpen
			return true
		}
		if c == '&' {
			t.pos++
			text, n := resolveCharRef(string(t.src[t.pos:min(len(t.src), t.pos+32)]))
			t.pos += n
			sb.WriteString(text)
			continue
		}
		sb.WriteRune(c)
		t.pos++
	}
}

// stepRawText handles RCDATA/RAWTEXT/ScriptData: character data (with
// entity decoding only in RCDATA) up to a matching "</tagName" end tag,
// which returns the tokenizer to Data. This collapses the spec's many named
// sub-states (RAWTEXTLessThanSign, ScriptDataEscaped, ...) into one routine;
// script-data-escaped nesting is not modeled (documented simplification).
func (t *Tokenizer) stepRawText() bool {
	decodeEntities := t.state == RCDATA
	var sb strings.Builder
	for {
		c, ok := t.peek()
		if !ok {
			if sb.Len() > 0 {
				t.emit(Token{Type: Character, Data: sb.String()})
			}
			return sb.Len() > 0
		}
		if c == '<' {
			if end, tag, attrs := t.matchEndTag(); end {
				if sb.Len() > 0 {
					t.emit(Token{Type: Character, Data: sb.String()})
				}
				t.emit(Token{Type: EndTag, TagName: tag, Attrs: attrs})
				t.state = Data
				return true
			}
		}
		if c == '&' && decodeEntities {
			t.pos++
			text, n := resolveCharRef(string(t.src[t.pos:min(len(t.src), t.pos+32)]))
			t.pos += n
			sb.WriteString(text)
			continue
		}
		sb.WriteRune(c)
		t.pos++
	}
}

// matchEndTag peeks for "</" + t.rawTextTag (case-insensitive) starting at
// the current '<'. On a match it consumes through the closing '>' and
// returns the tag name; otherwise it leaves pos untouched.
func (t *Tokenizer) matchEndTag() (bool, string, []TokenAttr) {
	start := t.pos
	if start+1 >= len(t.src) || t.src[start+1] != '/' {
		return false, "", nil
	}
	i := start + 2
	var name strings.Builder
	for i < len(t.src) && isAsciiAlpha(t.src[i]) {
		name.WriteRune(t.src[i])
		i++
	}
	if !strings.EqualFold(name.String(), t.rawTextTag) {
		return false, "", nil
	}
	for i < len(t.src) && t.src[i] != '>' {
		i++
	}
	if i < len(t.src) {
		i++ // consume '>'
	}
	t.pos = i
	return true, strings.ToLower(name.String()), nil
}

func (t *Tokenizer) stepTagOpen() bool {
	c, ok := t.peek()
	if !ok {
		t.emit(Token{Type: Character, Data: "<"})
		return true
	}
	switch {
	case c == '!':
		t.pos++
		t.state = MarkupDeclarationOpen
		return t.step()
	case c == '/':
		t.pos++
		t.state = EndTagOpen
		return t.step()
	case isAsciiAlpha(c):
		t.pending = &Token{Type: StartTag}
		t.state = TagName
		return t.step()
	case c == '?':
		t.errorf("unexpected-question-mark-instead-of-tag-name")
		t.state = Comment
		t.pendingComment.Reset()
		return t.step()
	default:
		t.errorf("invalid-first-character-of-tag-name")
		t.emit(Token{Type: Character, Data: "<"})
		t.state = Data
		return true
	}
}

func (t *Tokenizer) stepEndTagOpen() bool {
	c, ok := t.peek()
	if !ok || !isAsciiAlpha(c) {
		if ok && c == '>' {
			t.pos++
			t.errorf("missing-end-tag-name")
			t.state = Data
			return t.step()
		}
		t.errorf("invalid-first-character-of-tag-name")
		t.state = Comment
		t.pendingComment.Reset()
		return t.step()
	}
	t.pending = &Token{Type: EndTag}
	t.state = TagName
	return t.step()
}

func isAsciiAlpha(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
