package xades

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml"
)

// canonicalize applies exclusive C14N without comments to a copy of el.
// The canonicalizer does not see ancestors, so every prefix used below el
// must be declared on el or inside it.
func canonicalize(el *etree.Element) ([]byte, error) {
	c14n := signedxml.ExclusiveCanonicalization{WithComments: false}
	out, err := c14n.ProcessElement(el.Copy(), "")
	if err != nil {
		return nil, fmt.Errorf("canonicalizing %s: %w", el.FullTag(), err)
	}
	return []byte(out), nil
}

func digest(el *etree.Element) ([]byte, error) {
	canonical, err := canonicalize(el)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(canonical)
	return sum[:], nil
}

// digestDocument digests doc as a URI="" reference selects it, with root in
// place of the document element. Processing instructions outside the document
// element are part of the canonical form: those before it are each followed
// by a line feed, those after it are each preceded by one. The XML
// declaration, comments and whitespace outside the document element are not.
func digestDocument(doc *etree.Document, root *etree.Element) ([]byte, error) {
	canonical, err := canonicalize(root)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	afterRoot := false
	for _, tok := range doc.Child {
		switch t := tok.(type) {
		case *etree.Element:
			buf.Write(canonical)
			afterRoot = true
		case *etree.ProcInst:
			if t.Target == "xml" {
				continue
			}
			if afterRoot {
				buf.WriteByte('\n')
			}
			buf.WriteString("<?" + t.Target)
			if t.Inst != "" {
				buf.WriteString(" " + t.Inst)
			}
			buf.WriteString("?>")
			if !afterRoot {
				buf.WriteByte('\n')
			}
		}
	}

	sum := sha256.Sum256(buf.Bytes())
	return sum[:], nil
}

// canonicalWrite escapes carriage returns and attribute whitespace on output
// so the serialized document parses back to the characters that were
// digested.
func canonicalWrite(doc *etree.Document) {
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
}

func encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
}

func is(el *etree.Element, space, tag string) bool {
	return el != nil && el.Tag == tag && el.NamespaceURI() == space
}

func child(parent *etree.Element, space, tag string) *etree.Element {
	if parent == nil {
		return nil
	}
	for _, c := range parent.ChildElements() {
		if is(c, space, tag) {
			return c
		}
	}
	return nil
}

func children(parent *etree.Element, space, tag string) []*etree.Element {
	if parent == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range parent.ChildElements() {
		if is(c, space, tag) {
			out = append(out, c)
		}
	}
	return out
}

// path follows a chain of child elements in one namespace.
func path(from *etree.Element, space string, tags ...string) *etree.Element {
	el := from
	for _, tag := range tags {
		el = child(el, space, tag)
		if el == nil {
			return nil
		}
	}
	return el
}

func find(root *etree.Element, match func(*etree.Element) bool) *etree.Element {
	if match(root) {
		return root
	}
	for _, c := range root.ChildElements() {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findByID(root *etree.Element, id string) *etree.Element {
	return find(root, func(el *etree.Element) bool {
		return el.SelectAttrValue("Id", "") == id
	})
}

func text(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.Text()
}

func serialize(el *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	canonicalWrite(doc)
	return doc.WriteToBytes()
}
