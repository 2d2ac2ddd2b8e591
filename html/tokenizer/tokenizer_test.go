package tokenizer

import "testing"

func tokenize(s string) []Token {
	tz := New([]rune(s))
	var out []Token
	for {
		tok := tz.Next()
		out = append(out, tok)
		if tok.Type == EOF {
			return out
		}
	}
}

func TestSimpleTagAndText(t *testing.T) {
	toks := tokenize(`<p class="a">hi</p>`)
	if toks[0].Type != StartTag || toks[0].TagName != "p" {
		t.Fatalf("unexpected first token: %+v", toks[0])
	}
	if len(toks[0].Attrs) != 1 || toks[0].Attrs[0].Name != "class" || toks[0].Attrs[0].Value != "a" {
		t.Fatalf("unexpected attrs: %+v", toks[0].Attrs)
	}
	if toks[1].Type != Character || toks[1].Data != "hi" {
		t.Fatalf("unexpected char token: %+v", toks[1])
	}
	if toks[2].Type != EndTag || toks[2].TagName != "p" {
		t.Fatalf("unexpected end tag: %+v", toks[2])
	}
}

func TestEntityDecoding(t *testing.T) {
	toks := tokenize(`a &amp; b &#65; &lt;`)
	if toks[0].Type != Character || toks[0].Data != "a & b A <" {
		t.Fatalf("unexpected decoded text: %q", toks[0].Data)
	}
}

func TestCommentToken(t *testing.T) {
	toks := tokenize(`<!-- hello -->`)
	if toks[0].Type != Comment || toks[0].Data != " hello " {
		t.Fatalf("unexpected comment: %+v", toks[0])
	}
}

func TestDoctype(t *testing.T) {
	toks := tokenize(`<!DOCTYPE html>`)
	if toks[0].Type != DOCTYPE || toks[0].DoctypeName != "html" || toks[0].ForceQuirks {
		t.Fatalf("unexpected doctype: %+v", toks[0])
	}
}

func TestDeterminism(t *testing.T) {
	input := `<div id="x"><span>hi &amp; bye</span></div>`
	a := tokenize(input)
	b := tokenize(input)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic lengths: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Type != b[i].Type || a[i].Data != b[i].Data || a[i].TagName != b[i].TagName {
			t.Fatalf("token %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestRawTextModeSwitch(t *testing.T) {
	tz := New([]rune(`console.log("<div>")</script>after`))
	tz.SwitchTo(ScriptData, "script")
	tok := tz.Next()
	if tok.Type != Character || tok.Data != `console.log("<div>")` {
		t.Fatalf("unexpected script data: %+v", tok)
	}
	end := tz.Next()
	if end.Type != EndTag || end.TagName != "script" {
		t.Fatalf("expected </script>, got %+v", end)
	}
	rest := tz.Next()
	if rest.Type != Character || rest.Data != "after" {
		t.Fatalf("expected trailing data token, got %+v", rest)
	}
}
