package xmltree

import (
	"testing"
)

func TestParseAndNavigate(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<ROOT>
  <Section attr="x">
    <ROW><A>1</A><B> two </B></ROW>
    <ROW><A>3</A></ROW>
  </Section>
</ROOT>`)

	root, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if root.Name != "ROOT" {
		t.Errorf("root name = %q, want ROOT", root.Name)
	}

	sec := root.First("Section")
	if sec == nil {
		t.Fatal("Section not found")
	}
	if sec.Attrs["attr"] != "x" {
		t.Errorf("attr = %q, want x", sec.Attrs["attr"])
	}

	rows := sec.All("ROW")
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if got := rows[0].Field("B"); got != "two" {
		t.Errorf("Field(B) = %q, want trimmed %q", got, "two")
	}
	if got := rows[1].Field("B"); got != "" {
		t.Errorf("missing field = %q, want empty", got)
	}
}

func TestFirstIsCaseInsensitiveWithAliases(t *testing.T) {
	doc := []byte(`<env><body><retData>payload</retData></body></env>`)
	root, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	body := root.First("Body")
	if body == nil {
		t.Fatal("case-insensitive First missed body")
	}
	ret := body.First("retdata", "retData")
	if ret == nil || ret.Value() != "payload" {
		t.Fatalf("alias lookup failed: %+v", ret)
	}
}

func TestNamespacePrefixesStripped(t *testing.T) {
	doc := []byte(`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">
  <soapenv:Body><ns2:DoNormalEnquiryResponse xmlns:ns2="http://webServices/">ok</ns2:DoNormalEnquiryResponse></soapenv:Body>
</soapenv:Envelope>`)
	root, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if root.Name != "Envelope" {
		t.Errorf("root = %q, want local name Envelope", root.Name)
	}
	resp := root.First("Body").First("DoNormalEnquiryResponse")
	if resp == nil || resp.Value() != "ok" {
		t.Fatal("prefixed elements should match by local name")
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte("")); err == nil {
		t.Error("empty document should fail")
	}
	if _, err := Parse([]byte("<a><b></a>")); err == nil {
		t.Error("mismatched tags should fail")
	}
	if _, err := Parse([]byte("not xml at all")); err == nil {
		t.Error("non-xml should fail")
	}
}

func TestNilSafeNavigation(t *testing.T) {
	var n *Node
	if n.First("x") != nil {
		t.Error("First on nil node should return nil")
	}
	if n.Value() != "" {
		t.Error("Value on nil node should return empty")
	}
	root, _ := Parse([]byte("<a/>"))
	if got := root.First("missing").Field("deeper"); got != "" {
		t.Errorf("chained missing lookup = %q, want empty", got)
	}
}
