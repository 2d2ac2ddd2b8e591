package cmn

import "testing"

func TestParseMethod(t *testing.T) {
	cases := []struct {
		in   string
		want Method
	}{
		{"get", MethodGET},
		{"GET", MethodGET},
		{"Head", MethodHEAD},
		{"PROPFIND", MethodPROPFIND},
		{"get\x01", MethodInvalid},
	}
	for _, tc := range cases {
		got := ParseMethod(tc.in)
		if got.name != tc.want.name {
			t.Errorf("ParseMethod(%q) = %q, want %q", tc.in, got.name, tc.want.name)
		}
	}
}

func TestMethodFlags(t *testing.T) {
	if !MethodGET.IsSafe() || !MethodGET.IsIdempotent() || !MethodGET.IsCacheable() {
		t.Fatal("GET should be safe, idempotent, cacheable")
	}
	if MethodPOST.IsSafe() || MethodPOST.IsIdempotent() {
		t.Fatal("POST should be neither safe nor idempotent")
	}
	if !MethodPUT.AllowsBody() {
		t.Fatal("PUT should allow a body")
	}
	if !MethodPROPFIND.IsWebDAV() {
		t.Fatal("PROPFIND should be flagged WebDAV")
	}
}

func TestMethodCompatible(t *testing.T) {
	if !MethodCompatible(MethodGET, MethodHEAD) {
		t.Fatal("GET handler should serve HEAD")
	}
	if MethodCompatible(MethodGET, MethodPOST) {
		t.Fatal("GET handler should not serve POST")
	}
}

func TestStatusFromCode(t *testing.T) {
	if s, ok := StatusFromCode(404); !ok || s.Reason != "Not Found" || s.Category() != CategoryClientError {
		t.Fatalf("unexpected status for 404: %+v ok=%v", s, ok)
	}
	if _, ok := StatusFromCode(999); ok {
		t.Fatal("999 should be an unknown status code")
	}
}

func TestVersionCapabilities(t *testing.T) {
	if Http10.PersistentConnections() {
		t.Fatal("HTTP/1.0 has no persistent connections by default")
	}
	if !Http2.Multiplexing() || !Http3.Multiplexing() {
		t.Fatal("H2/H3 should multiplex")
	}
	if Http11.Multiplexing() {
		t.Fatal("H1.1 should not multiplex")
	}
}
